// Social timeline HTTP handlers.
//
//   - GET    /posts               (paginated, newest first, with counters)
//   - POST   /posts               (publish)
//   - DELETE /posts/{id}          (author only)
//   - POST   /posts/{id}/like     (toggle)
//   - POST   /posts/{id}/comments (comment)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coony/chat-backend/internal/utils"
	"github.com/coony/chat-backend/internal/view"
)

// CreatePostRequest is the JSON payload for publishing a post.
type CreatePostRequest struct {
	Text string `json:"text" example:"Bom dia, Coony!"`
}

// CreateCommentRequest is the JSON payload for commenting on a post.
type CreateCommentRequest struct {
	Text string `json:"text" example:"Bom dia!"`
}

// PostResponse wraps one post.
type PostResponse struct {
	Post view.Post `json:"post"`
}

// ListPostsResponse wraps a page of posts and pagination information.
type ListPostsResponse struct {
	Posts      []view.Post `json:"posts"`
	Pagination Pagination  `json:"pagination"`
}

// LikeResponse reports the caller's like state after a toggle.
type LikeResponse struct {
	Liked bool `json:"liked"`
}

// CommentResponse wraps one comment.
type CommentResponse struct {
	Comment view.Comment `json:"comment"`
}

// ListPosts godoc
// @ID          listPosts
// @Summary     List posts (paginated)
// @Tags        Posts
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListPostsResponse
// @Router      /posts [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	uid := viewer(c)
	page, pageSize := clampPagination(c)

	rows, total, err := h.social.ListPosts(c.Request.Context(), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]view.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, h.present.Post(r.Post, r.LikeCount, r.CommentCount, uid))
	}
	ok(c, http.StatusOK, ListPostsResponse{Posts: out, Pagination: utils.NewPage(page, pageSize, total)})
}

// CreatePost godoc
// @ID          createPost
// @Summary     Publish a post
// @Tags        Posts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreatePostRequest  true  "Post payload"
// @Success     201   {object}  handlers.PostResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Empty or too long text"
// @Router      /posts [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	uid := viewer(c)
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "JSON inválido")
		return
	}
	p, err := h.social.CreatePost(c.Request.Context(), uid, req.Text)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, PostResponse{Post: h.present.Post(*p, 0, 0, uid)})
}

// DeletePost godoc
// @ID          deletePost
// @Summary     Delete a post
// @Description Removes the caller's own post with its comments and likes.
// @Tags        Posts
// @Security    BearerAuth
// @Param       id   path      int  true  "Post ID"
// @Success     204  {string}  string "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Router      /posts/{id} [delete]
func (h *Handlers) DeletePost(c *gin.Context) {
	postID, okID := pathID(c, "id", "ID do post")
	if !okID {
		return
	}
	if err := h.social.DeletePost(c.Request.Context(), postID, viewer(c)); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ToggleLike godoc
// @ID          toggleLike
// @Summary     Like or unlike a post
// @Tags        Posts
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Post ID"
// @Success     200  {object}  handlers.LikeResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Router      /posts/{id}/like [post]
func (h *Handlers) ToggleLike(c *gin.Context) {
	postID, okID := pathID(c, "id", "ID do post")
	if !okID {
		return
	}
	liked, err := h.social.ToggleLike(c.Request.Context(), postID, viewer(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LikeResponse{Liked: liked})
}

// CreateComment godoc
// @ID          createComment
// @Summary     Comment on a post
// @Tags        Posts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int  true  "Post ID"
// @Param       body  body      handlers.CreateCommentRequest  true  "Comment payload"
// @Success     201   {object}  handlers.CommentResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Empty text"
// @Failure     404   {object}  handlers.ErrorResponse  "Post not found"
// @Router      /posts/{id}/comments [post]
func (h *Handlers) CreateComment(c *gin.Context) {
	ctx := c.Request.Context()
	uid := viewer(c)
	postID, okID := pathID(c, "id", "ID do post")
	if !okID {
		return
	}
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "JSON inválido")
		return
	}
	cm, err := h.social.Comment(ctx, postID, uid, req.Text)
	if err != nil {
		failErr(c, err)
		return
	}
	// The author is the caller; fill it in for the projection.
	if cm.Author.ID == 0 {
		if u, err := h.users.Get(ctx, uid); err == nil {
			cm.Author = *u
		}
	}
	ok(c, http.StatusCreated, CommentResponse{Comment: h.present.Comment(*cm)})
}
