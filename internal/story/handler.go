package story

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmongo"
)

// FeedPath is where an empty story view sends the viewer.
const FeedPath = "/api/v1/feed"

// View is a story annotated with its age label.
type View struct {
	*dbmongo.Story
	Age string `json:"age"`
}

// Views annotates stories with age labels relative to the manager's clock.
func (m *Manager) Views(stories []*dbmongo.Story) []View {
	now := m.clock.Now()
	out := make([]View, 0, len(stories))
	for _, s := range stories {
		out = append(out, View{Story: s, Age: common.FormatAge(s.CreatedAt, now)})
	}
	return out
}

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/stories/{userId}", h.viewStories).Methods(http.MethodGet)
}

func (h *Handler) viewStories(w http.ResponseWriter, r *http.Request) {
	ownerID, err := primitive.ObjectIDFromHex(mux.Vars(r)["userId"])
	if err != nil {
		common.WriteErr(w, common.Validationf("invalid user id"))
		return
	}

	owner, stories, err := h.manager.ViewStories(r.Context(), ownerID)
	if errors.Is(err, ErrNoActiveStories) {
		http.Redirect(w, r, FeedPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		common.WriteErr(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, map[string]any{
		"owner": map[string]any{
			"id":            owner.ID,
			"username":      owner.Username,
			"profile_image": owner.ProfileImage,
		},
		"stories": h.manager.Views(stories),
	})
}
