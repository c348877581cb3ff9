package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/cache"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

const MaxPostLength = 140

type FeedService struct {
	postRepo *repository.PostRepository
	userRepo *repository.UserRepository
	cache    Cache
	producer EventPublisher
	config   *config.FeedConfig
	logger   *logger.Logger
}

func NewFeedService(
	postRepo *repository.PostRepository,
	userRepo *repository.UserRepository,
	cache Cache,
	producer EventPublisher,
	config *config.FeedConfig,
	logger *logger.Logger,
) *FeedService {
	return &FeedService{
		postRepo: postRepo,
		userRepo: userRepo,
		cache:    cache,
		producer: producer,
		config:   config,
		logger:   logger,
	}
}

type CreatePostRequest struct {
	Body string `json:"body"`
}

type Page struct {
	Offset int
	Limit  int
}

type FeedResponse struct {
	Posts      []*models.Post `json:"posts"`
	NextOffset int            `json:"next_offset"`
	HasMore    bool           `json:"has_more"`
}

func (s *FeedService) CreatePost(ctx context.Context, userID uuid.UUID, req *CreatePostRequest) (*models.Post, error) {
	n := utf8.RuneCountInString(req.Body)
	if n == 0 || n > MaxPostLength {
		return nil, fmt.Errorf("%w: post body must be 1-%d characters", ErrInvalidInput, MaxPostLength)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	post := &models.Post{
		UserID:    userID,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	post.Author = *user

	// The author's own feed is refreshed now; followers' feeds are refreshed
	// by the event worker.
	invalidateFeed(ctx, s.cache, s.logger, userID)
	publishEvent(ctx, s.producer, s.logger, userID.String(), queue.NewEvent(queue.EventPostCreated, queue.PostEventData{
		PostID:    post.ID.String(),
		UserID:    userID.String(),
		Body:      post.Body,
		CreatedAt: post.CreatedAt.Format(time.RFC3339Nano),
	}))

	s.logger.WithFields(map[string]interface{}{
		"post_id": post.ID,
		"user_id": userID,
	}).Info("Post created")

	return post, nil
}

// FollowedPosts is the user's home feed: their own posts and those of every
// user they follow, newest first. Pages are cached until the next write that
// could change them.
func (s *FeedService) FollowedPosts(ctx context.Context, userID uuid.UUID, page Page) (*FeedResponse, error) {
	page = s.normalise(page)

	cacheKey := fmt.Sprintf("%s%d:%d", feedKeyPrefix(userID), page.Offset, page.Limit)
	if s.cache != nil {
		var cached FeedResponse
		err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.WithError(err).Warn("Failed to read cached feed")
		}
	}

	posts, err := s.postRepo.FollowedPosts(ctx, userID, page.Offset, page.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	response := paginate(posts, page)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, response, s.config.CacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache feed")
		}
	}

	return response, nil
}

func (s *FeedService) GetUserPosts(ctx context.Context, userID uuid.UUID, page Page) (*FeedResponse, error) {
	page = s.normalise(page)
	posts, err := s.postRepo.GetByUserID(ctx, userID, page.Offset, page.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to get user posts: %w", err)
	}
	return paginate(posts, page), nil
}

// Explore lists every post, newest first.
func (s *FeedService) Explore(ctx context.Context, page Page) (*FeedResponse, error) {
	page = s.normalise(page)
	posts, err := s.postRepo.List(ctx, page.Offset, page.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return paginate(posts, page), nil
}

func (s *FeedService) SearchPosts(ctx context.Context, query string, page Page) (*FeedResponse, error) {
	page = s.normalise(page)
	posts, err := s.postRepo.Search(ctx, query, page.Offset, page.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	return paginate(posts, page), nil
}

func (s *FeedService) GetPost(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// DeletePost removes a post on behalf of its author.
func (s *FeedService) DeletePost(ctx context.Context, userID, postID uuid.UUID) error {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return ErrPermissionDenied
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	invalidateFeed(ctx, s.cache, s.logger, userID)
	publishEvent(ctx, s.producer, s.logger, userID.String(), queue.NewEvent(queue.EventPostDeleted, queue.PostEventData{
		PostID: postID.String(),
		UserID: userID.String(),
	}))

	s.logger.WithFields(map[string]interface{}{
		"post_id": postID,
		"user_id": userID,
	}).Info("Post deleted")
	return nil
}

// InvalidateFeed drops every cached page of the user's home feed.
func (s *FeedService) InvalidateFeed(ctx context.Context, userID uuid.UUID) {
	invalidateFeed(ctx, s.cache, s.logger, userID)
}

func (s *FeedService) normalise(page Page) Page {
	if page.Offset < 0 {
		page.Offset = 0
	}
	if page.Limit <= 0 {
		page.Limit = s.config.PageSize
	}
	if page.Limit > s.config.MaxPageSize {
		page.Limit = s.config.MaxPageSize
	}
	return page
}

// paginate expects one row more than page.Limit when another page exists.
func paginate(posts []*models.Post, page Page) *FeedResponse {
	response := &FeedResponse{Posts: posts}
	if len(posts) > page.Limit {
		response.Posts = posts[:page.Limit]
		response.HasMore = true
		response.NextOffset = page.Offset + page.Limit
	}
	if response.Posts == nil {
		response.Posts = []*models.Post{}
	}
	return response
}

func feedKeyPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("feed:%s:", userID)
}

func invalidateFeed(ctx context.Context, c Cache, log *logger.Logger, userID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.DeletePattern(ctx, feedKeyPrefix(userID)+"*"); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to invalidate feed cache")
	}
}
