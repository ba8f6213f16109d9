package user

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
)

const maxImageBytes = 10 << 20

// PostLoader resolves the posts listed on a profile.
type PostLoader interface {
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*dbmongo.Post, error)
}

// Uploader stores an image and returns its public URL and deletion token.
type Uploader interface {
	UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*dbmongo.MediaFile, error)
}

// Handler connects the account and follow-graph HTTP routes to UserService.
type Handler struct {
	userService UserService
	posts       PostLoader
	uploads     Uploader
	log         zerolog.Logger
}

func NewHandler(userService UserService, posts PostLoader, uploads Uploader, log zerolog.Logger) *Handler {
	return &Handler{userService: userService, posts: posts, uploads: uploads, log: log}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/password", h.changePassword).Methods(http.MethodPut)
	r.HandleFunc("/profile", h.ownProfile).Methods(http.MethodGet)
	r.HandleFunc("/profile", h.updateProfile).Methods(http.MethodPut)
	r.HandleFunc("/profile/image", h.uploadProfileImage).Methods(http.MethodPost)
	r.HandleFunc("/profile/{userId}", h.profileByID).Methods(http.MethodGet)
	r.HandleFunc("/search/{username}", h.search).Methods(http.MethodGet)
	r.HandleFunc("/follow/{userId}", h.toggleFollow).Methods(http.MethodPost)
}

type registerRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type profileRequest struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
	Bio      *string `json:"bio"`
}

type authResponse struct {
	Token string        `json:"token"`
	User  *dbmongo.User `json:"user"`
}

type profileResponse struct {
	User      *dbmongo.User   `json:"user"`
	Posts     []*dbmongo.Post `json:"posts"`
	Following *bool           `json:"following,omitempty"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.Validationf("invalid request body")
	}
	return nil
}

// caller returns the authenticated user id from the request context.
func caller(r *http.Request) (primitive.ObjectID, error) {
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

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		common.WriteErr(w, err)
		return
	}
	user, token, err := h.userService.RegisterUser(r.Context(), req.Username, req.Name, req.Email, req.Password)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		common.WriteErr(w, err)
		return
	}
	user, token, err := h.userService.LoginUser(r.Context(), req.Username, req.Password)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	var req passwordRequest
	if err := decode(r, &req); err != nil {
		common.WriteErr(w, err)
		return
	}
	if err := h.userService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

func (h *Handler) ownProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	h.writeProfile(w, r, userID, nil)
}

func (h *Handler) profileByID(w http.ResponseWriter, r *http.Request) {
	viewerID, err := caller(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	h.writeProfile(w, r, userID, &viewerID)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, viewer *primitive.ObjectID) {
	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}

	resp := profileResponse{User: user, Posts: []*dbmongo.Post{}}
	if h.posts != nil && len(user.Posts) > 0 {
		posts, err := h.posts.GetPostsByIDs(r.Context(), user.Posts)
		if err != nil {
			common.WriteErr(w, err)
			return
		}
		resp.Posts = posts
	}
	if viewer != nil && *viewer != userID {
		following := user.HasRef(dbmongo.RefFollowers, *viewer)
		resp.Following = &following
	}
	common.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	var req profileRequest
	if err := decode(r, &req); err != nil {
		common.WriteErr(w, err)
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), userID, dbmongo.ProfileUpdate{
		Username: req.Username,
		Name:     req.Name,
		Bio:      req.Bio,
	})
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) uploadProfileImage(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	if h.uploads == nil {
		common.WriteError(w, http.StatusServiceUnavailable, "uploads unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		common.WriteErr(w, common.Validationf("image file required"))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		common.WriteErr(w, common.Validationf("profile image must be an image"))
		return
	}

	stored, err := h.uploads.UploadFile(r.Context(), header.Filename, mimeType, userID.Hex(), file)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), userID, dbmongo.ProfileUpdate{ProfileImage: &stored.URL})
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	h.log.Info().Str("user", userID.Hex()).Str("file", stored.ID).Msg("profile image updated")
	common.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.SearchUsers(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) toggleFollow(w http.ResponseWriter, r *http.Request) {
	followerID, err := caller(r)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	targetID, err := pathID(r, "userId")
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	following, err := h.userService.ToggleFollow(r.Context(), followerID, targetID)
	if err != nil {
		common.WriteErr(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]bool{"following": following})
}
