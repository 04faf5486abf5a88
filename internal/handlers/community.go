package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriwellness/nutricare/internal/auth"
	"github.com/nutriwellness/nutricare/internal/gate"
	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/middleware"
	"github.com/nutriwellness/nutricare/internal/models"
	"github.com/nutriwellness/nutricare/internal/policy"
	"github.com/nutriwellness/nutricare/internal/validation"
)

type CommunityHandler struct {
	DB   *gorm.DB
	Gate *policy.AuthGate
}

func NewCommunityHandler(db *gorm.DB, g *policy.AuthGate) *CommunityHandler {
	return &CommunityHandler{DB: db, Gate: g}
}

func (h *CommunityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /community", h.feed)
	mux.HandleFunc("POST /community/posts", h.createPost)
	mux.HandleFunc("GET /community/posts/{id}", h.showPost)
	mux.HandleFunc("POST /community/posts/{id}/delete", h.deletePost)
	mux.HandleFunc("POST /community/posts/{id}/pin", h.togglePin)
	mux.HandleFunc("POST /community/posts/{id}/comments", h.createComment)
	mux.HandleFunc("POST /community/comments/{id}/delete", h.deleteComment)
}

// feed lists posts pinned-first, newest within each group.
func (h *CommunityHandler) feed(w http.ResponseWriter, r *http.Request) {
	var posts []models.Post
	q := h.DB.Model(&models.Post{}).
		Preload("Author").
		Order("is_pinned desc, created_at desc")
	result, err := paginate(q, pageParam(r, "page"), &posts)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}
	items := make([]map[string]any, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		items = append(items, map[string]any{
			"post":       p,
			"youtube_id": p.YouTubeID(),
		})
	}
	result.Items = items
	httpx.JSON(w, http.StatusOK, result)
}

type postInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
	VideoURL string `json:"video_url"`
}

func (h *CommunityHandler) createPost(w http.ResponseWriter, r *http.Request) {
	if !h.Gate.Can(r.Context(), gate.ActionCreate, policy.ResourcePost, nil) {
		policy.Deny(w, r)
		return
	}
	var in postInput
	err := decodeInput(r, &in, func() {
		in.Title = r.FormValue("title")
		in.Content = r.FormValue("content")
		in.ImageURL = r.FormValue("image_url")
		in.VideoURL = r.FormValue("video_url")
	})
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}

	v := validation.Violations{}
	validation.Required("title", in.Title, v)
	validation.Required("content", in.Content, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	pr, _ := auth.PrincipalFromContext(r.Context())
	post := models.Post{
		AuthorID: pr.ID,
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
		ImageURL: in.ImageURL,
		VideoURL: in.VideoURL,
	}
	if err := h.DB.Create(&post).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, post)
		return
	}
	middleware.Flash(w, "Publication créée")
	http.Redirect(w, r, "/community", http.StatusSeeOther)
}

func (h *CommunityHandler) loadPost(r *http.Request) (*models.Post, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var post models.Post
	err = h.DB.Preload("Author").First(&post, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// showPost returns the post with its top-level comments and one level of
// replies, matching what the thread page renders.
func (h *CommunityHandler) showPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.loadPost(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var comments []models.Comment
	h.DB.Where("post_id = ? AND parent_id IS NULL", post.ID).
		Preload("User").
		Preload("Replies").
		Preload("Replies.User").
		Order("created_at asc").
		Find(&comments)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"post":       post,
		"youtube_id": post.YouTubeID(),
		"comments":   comments,
	})
}

func (h *CommunityHandler) deletePost(w http.ResponseWriter, r *http.Request) {
	post, err := h.loadPost(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionDelete, policy.ResourcePost, post) {
		policy.Deny(w, r)
		return
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
		return
	}
	middleware.Flash(w, "Publication supprimée")
	http.Redirect(w, r, "/community", http.StatusSeeOther)
}

func (h *CommunityHandler) togglePin(w http.ResponseWriter, r *http.Request) {
	post, err := h.loadPost(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), policy.ActionPin, policy.ResourcePost, post) {
		policy.Deny(w, r)
		return
	}
	pinned := !post.IsPinned
	if err := h.DB.Model(post).Update("is_pinned", pinned).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"is_pinned": pinned})
		return
	}
	http.Redirect(w, r, "/community", http.StatusSeeOther)
}

type commentInput struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id"`
}

func (h *CommunityHandler) createComment(w http.ResponseWriter, r *http.Request) {
	post, err := h.loadPost(r)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionCreate, policy.ResourceComment, nil) {
		policy.Deny(w, r)
		return
	}

	var in commentInput
	err = decodeInput(r, &in, func() {
		in.Content = r.FormValue("content")
		in.ParentID = r.FormValue("parent_id")
	})
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}

	v := validation.Violations{}
	validation.Required("content", in.Content, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	pr, _ := auth.PrincipalFromContext(r.Context())
	comment := models.Comment{PostID: post.ID, UserID: pr.ID, Content: in.Content}
	if in.ParentID != "" {
		parentID, err := uuid.Parse(in.ParentID)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_parent", nil)
			return
		}
		var parent models.Comment
		if err := h.DB.First(&parent, "id = ? AND post_id = ?", parentID, post.ID).Error; err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_parent", nil)
			return
		}
		// Replies stay one level deep: replying to a reply attaches to its
		// top-level parent instead.
		if parent.ParentID != nil {
			comment.ParentID = parent.ParentID
		} else {
			comment.ParentID = &parent.ID
		}
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, comment)
		return
	}
	http.Redirect(w, r, "/community/posts/"+post.ID.String(), http.StatusSeeOther)
}

func (h *CommunityHandler) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var comment models.Comment
	if err := h.DB.First(&comment, "id = ?", id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !h.Gate.Can(r.Context(), gate.ActionDelete, policy.ResourceComment, &comment) {
		policy.Deny(w, r)
		return
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", comment.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&comment).Error
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "db_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
		return
	}
	http.Redirect(w, r, "/community/posts/"+comment.PostID.String(), http.StatusSeeOther)
}
