package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/rentease/admin/pkg/auth"
	"github.com/rentease/admin/pkg/backend"
	"github.com/rentease/admin/pkg/blob"
	"github.com/rentease/admin/pkg/models"
)

const (
	msgIncompleteProfile = "Please update all your information."
	msgProfileUpdated    = "Profile updated successfully."

	// maxPictureBytes bounds profile picture uploads.
	maxPictureBytes = 10 << 20
)

type profileResponse struct {
	Profile models.Admin `json:"profile"`
	Missing []string     `json:"missing,omitempty"`
	Message string       `json:"message,omitempty"`
}

type profileUpdate struct {
	FullName       string `json:"full_name" validate:"required"`
	Address        string `json:"address"`
	DateOfBirth    string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Phone          string `json:"phone"`
	ProfilePicture string `json:"profile_picture" validate:"omitempty,url"`
}

// Profile returns the admins row of userID.
func (a *App) Profile(ctx context.Context, userID string) (models.Admin, error) {
	rows, err := a.store.Select(ctx, models.TableAdmins, backend.Query{Where: map[string]any{"id": userID}})
	if err != nil {
		return models.Admin{}, err
	}
	if len(rows) == 0 {
		return models.Admin{}, fmt.Errorf("admin %s: %w", userID, backend.ErrNotFound)
	}
	return models.AdminFromRecord(rows[0]), nil
}

func profileFor(admin models.Admin, message string) profileResponse {
	resp := profileResponse{Profile: admin, Missing: admin.MissingFields(), Message: message}
	if resp.Message == "" && len(resp.Missing) > 0 {
		resp.Message = msgIncompleteProfile
	}
	return resp
}

func (a *App) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unable to fetch user.")
		return
	}
	admin, err := a.Profile(r.Context(), sess.User.ID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("fetch admin profile failed")
		status := http.StatusBadGateway
		if errors.Is(err, backend.ErrNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, status, "Error fetching admin profile.")
		return
	}
	respondJSON(w, http.StatusOK, profileFor(admin, ""))
}

func (a *App) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unable to fetch user.")
		return
	}
	var req profileUpdate
	if !a.decode(w, r, &req) {
		return
	}
	admin := models.Admin{
		ID:             sess.User.ID,
		FullName:       req.FullName,
		Address:        req.Address,
		DateOfBirth:    req.DateOfBirth,
		Phone:          req.Phone,
		ProfilePicture: req.ProfilePicture,
	}
	if err := a.store.Update(r.Context(), models.TableAdmins, admin.ID, admin.Fields()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("update admin profile failed")
		respondError(w, http.StatusBadGateway, "Failed to update profile.")
		return
	}
	respondJSON(w, http.StatusOK, profileFor(admin, msgProfileUpdated))
}

// handleUploadPicture stores the multipart "file" field under
// admin-profiles/ and records its public URL on the admin's profile.
func (a *App) handleUploadPicture(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unable to fetch user.")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPictureBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid image upload")
		return
	}
	defer file.Close()

	log := hlog.FromRequest(r)
	key := blob.ProfilePictureKey(a.now(), header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := a.blobs.Upload(r.Context(), key, file, contentType); err != nil {
		log.Error().Err(err).Str("key", key).Msg("profile picture upload failed")
		respondError(w, http.StatusBadGateway, "Failed to upload image.")
		return
	}
	url := a.blobs.PublicURL(key)

	err = a.store.Update(r.Context(), models.TableAdmins, sess.User.ID, map[string]any{"profile_picture": url})
	if err != nil {
		log.Error().Err(err).Msg("record profile picture failed")
		respondError(w, http.StatusBadGateway, "Failed to update profile.")
		return
	}
	log.Info().Str("key", key).Msg("profile picture uploaded")
	respondJSON(w, http.StatusOK, map[string]string{"key": key, "url": url})
}
