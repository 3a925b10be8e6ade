package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	postservice "github.com/lettercast/lettercast/internal/post/service"
)

type createPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *Server) CreatePost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	publicationID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		AbortWithError(c, newValidationError("title", "required", "title is required"))
		return
	}

	post, err := s.postSvc.Create(c.Request.Context(), postservice.CreateInput{
		PublicationID: publicationID,
		AuthorUserID:  user.ID,
		Title:         req.Title,
		Body:          req.Body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

func (s *Server) PublishPost(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	postID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	post, err := s.postSvc.Publish(c.Request.Context(), postID, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

// ListPosts is public for published posts; the owner additionally sees
// drafts when authenticated.
func (s *Server) ListPosts(c *gin.Context) {
	publicationID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var viewerID snowflake.ID
	if rawID := strings.TrimSpace(c.GetHeader(headerUserID)); rawID != "" {
		if id, parseErr := snowflake.ParseString(rawID); parseErr == nil {
			viewerID = id
		}
	}

	posts, err := s.postSvc.ListByPublication(c.Request.Context(), publicationID, viewerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
