package feed

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/common"
)

const maxUploadBytes = 20 << 20

type FeedHandlers struct {
	FeedSvc *FeedService
}

func NewFeedHandlers(svc *FeedService) *FeedHandlers {
	return &FeedHandlers{FeedSvc: svc}
}

func (h *FeedHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/feed", h.GetFeed).Methods(http.MethodGet)
	r.HandleFunc("/contacts", h.GetContacts).Methods(http.MethodGet)
	r.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)
	r.HandleFunc("/posts/{postId}", h.GetPost).Methods(http.MethodGet)
	r.HandleFunc("/posts/{postId}/like", h.ToggleLike).Methods(http.MethodPost)
	r.HandleFunc("/posts/{postId}/save", h.ToggleSave).Methods(http.MethodPost)
	r.HandleFunc("/saved", h.ListSaved).Methods(http.MethodGet)
	r.HandleFunc("/posts/{postId}/comments", h.AddComment).Methods(http.MethodPost)
	r.HandleFunc("/comments/{commentId}/replies", h.Reply).Methods(http.MethodPost)
	r.HandleFunc("/comments/{commentId}/like", h.ToggleCommentLike).Methods(http.MethodPost)
	r.HandleFunc("/comments/{commentId}", h.DeleteComment).Methods(http.MethodDelete)
}

type commentRequest struct {
	Text string `json:"text"`
}

func callerID(r *http.Request) (primitive.ObjectID, error) {
	id, ok := common.IdentityFrom(r.Context())
	if !ok {
		return primitive.NilObjectID, common.Unauthorizedf("not authenticated")
	}
	oid, err := primitive.ObjectIDFromHex(id.UserID)
	if err != nil {
		return primitive.NilObjectID, common.Unauthorizedf("not authenticated")
	}
	return oid, nil
}

func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		return primitive.NilObjectID, common.Validationf("invalid %s", name)
	}
	return oid, nil
}

// GetFeed resolves the caller by id so a renamed handle still finds its feed.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	viewerID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	viewer, err := h.FeedSvc.users.GetUserByID(r.Context(), viewerID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	view, err := h.FeedSvc.BuildFeed(r.Context(), viewer.Username)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, view)
}

func (h *FeedHandlers) GetContacts(w http.ResponseWriter, r *http.Request) {
	viewerID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	contacts, err := h.FeedSvc.Contacts(r.Context(), viewerID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	out := make([]*UserSummary, 0, len(contacts))
	for _, u := range contacts {
		out = append(out, summarize(u))
	}
	common.WriteJSON(w, http.StatusOK, out)
}

func (h *FeedHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		common.WriteErr(w, common.Validationf("invalid multipart form"))
		return
	}
	category, err := common.ParseUploadCategory(r.FormValue("category"))
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		common.WriteErr(w, common.Validationf("image file required"))
		return
	}
	defer file.Close()

	result, err := h.FeedSvc.Upload(r.Context(), ownerID, Upload{
		Category: category,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Caption:  r.FormValue("caption"),
		Content:  file,
	})
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, result)
}

func (h *FeedHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	viewerID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	postID, err := pathID(r, "postId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	detail, err := h.FeedSvc.GetPost(r.Context(), viewerID, postID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, detail)
}

func (h *FeedHandlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	postID, err := pathID(r, "postId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	liked, err := h.FeedSvc.ToggleLike(r.Context(), userID, postID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (h *FeedHandlers) ToggleSave(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	postID, err := pathID(r, "postId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	saved, err := h.FeedSvc.ToggleSave(r.Context(), userID, postID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (h *FeedHandlers) ListSaved(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	posts, err := h.FeedSvc.ListSaved(r.Context(), userID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, posts)
}

func (h *FeedHandlers) AddComment(w http.ResponseWriter, r *http.Request) {
	authorID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	postID, err := pathID(r, "postId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErr(w, common.Validationf("invalid request body"))
		return
	}
	c, err := h.FeedSvc.AddComment(r.Context(), authorID, postID, req.Text)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, c)
}

func (h *FeedHandlers) Reply(w http.ResponseWriter, r *http.Request) {
	authorID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	parentID, err := pathID(r, "commentId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErr(w, common.Validationf("invalid request body"))
		return
	}
	c, err := h.FeedSvc.Reply(r.Context(), authorID, parentID, req.Text)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, c)
}

func (h *FeedHandlers) ToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	commentID, err := pathID(r, "commentId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	liked, err := h.FeedSvc.ToggleCommentLike(r.Context(), userID, commentID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (h *FeedHandlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	commentID, err := pathID(r, "commentId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	if err := h.FeedSvc.DeleteComment(r.Context(), userID, commentID); err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
