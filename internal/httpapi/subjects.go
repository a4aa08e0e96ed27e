package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conference/internal/auth"
	"conference/internal/cloudinary"
	"conference/internal/subject"
)

const (
	maxPictureSize = 5 << 20
	// base64 of maxPictureSize plus room for the data URL header.
	maxPictureDataURL = maxPictureSize*4/3 + 64
)

type registerRequest struct {
	Title       string `json:"title" binding:"max=20"`
	FirstName   string `json:"first_name" binding:"required,notblank,max=100"`
	MiddleName  string `json:"middle_name" binding:"max=100"`
	LastName    string `json:"last_name" binding:"required,notblank,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Mobile      string `json:"mobile" binding:"max=30"`
	Institution string `json:"institution" binding:"max=200"`
	JobPosition string `json:"job_position" binding:"max=200"`
	Gender      string `json:"gender" binding:"omitempty,gender"`
	Accompanied bool   `json:"has_accompanying_person"`
	Picture     string `json:"picture" binding:"omitempty,datauri"`
}

// stripSpace removes every whitespace rune from s.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func (a *api) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	if len(req.Picture) > maxPictureDataURL {
		errorJSON(c, http.StatusRequestEntityTooLarge, "picture exceeds 5 MB")
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := a.subjects.FindByEmail(ctx, email); err == nil {
		errorJSON(c, http.StatusBadRequest, "a subject is already registered with this email address")
		return
	} else if !errors.Is(err, subject.ErrNotFound) {
		a.internalError(c, err)
		return
	}

	hash, err := auth.HashPassword(a.defaultPassword)
	if err != nil {
		a.internalError(c, err)
		return
	}
	var pictureURL string
	if req.Picture != "" {
		if !a.pictures.Enabled() {
			errorJSON(c, http.StatusServiceUnavailable, "image storage not configured")
			return
		}
		res, err := a.pictures.UploadDataURL(ctx, req.Picture)
		if err != nil {
			a.log.Error("registration picture upload failed", "email", email, "err", err)
			errorJSON(c, http.StatusBadGateway, "image upload failed")
			return
		}
		pictureURL = res.SecureURL
	}

	s := subject.New(subject.Name{
		First:  stripSpace(req.FirstName),
		Middle: stripSpace(req.MiddleName),
		Last:   stripSpace(req.LastName),
	}, email, a.clock.Now().UTC())
	s.Title = strings.TrimSpace(req.Title)
	s.Mobile = strings.TrimSpace(req.Mobile)
	s.Institution = strings.TrimSpace(req.Institution)
	s.JobPosition = strings.TrimSpace(req.JobPosition)
	if req.Gender != "" {
		s.Gender = req.Gender
	}
	s.HasAccompanyingPerson = req.Accompanied
	s.PictureURL = pictureURL
	s.PasswordHash = hash

	if err := a.subjects.Create(ctx, s); err != nil {
		if errors.Is(err, subject.ErrDuplicateEmail) {
			errorJSON(c, http.StatusBadRequest, "a subject is already registered with this email address")
			return
		}
		a.internalError(c, err)
		return
	}
	a.log.Info("subject registered", "id", s.ID, "unique_number", s.UniqueNumber)
	c.JSON(http.StatusCreated, gin.H{"subject": s})
}

// listAll returns every subject, keeping only those of the ?institution= query when given.
func (a *api) listAll(c *gin.Context) ([]*subject.Subject, bool) {
	subjects, err := a.subjects.List(c.Request.Context())
	if err != nil {
		a.internalError(c, err)
		return nil, false
	}
	inst := strings.TrimSpace(c.Query("institution"))
	if inst == "" {
		return subjects, true
	}
	out := make([]*subject.Subject, 0, len(subjects))
	for _, s := range subjects {
		if strings.EqualFold(strings.TrimSpace(s.Institution), inst) {
			out = append(out, s)
		}
	}
	return out, true
}

func (a *api) listSubjects(c *gin.Context) {
	subjects, ok := a.listAll(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subjects":      subjects,
		"duplicate_ids": subject.DuplicateNames(subjects),
	})
}

// subjectID parses the :id path parameter, answering 400 when it is not a uuid.
func subjectID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (a *api) getSubject(c *gin.Context) {
	id, ok := subjectID(c)
	if !ok {
		return
	}
	s, err := a.subjects.Load(c.Request.Context(), id)
	if err != nil {
		a.subjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": s})
}

func (a *api) subjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, subject.ErrNotFound):
		errorJSON(c, http.StatusNotFound, "subject not found")
	case errors.Is(err, subject.ErrDuplicateEmail):
		errorJSON(c, http.StatusBadRequest, "a subject is already registered with this email address")
	default:
		a.internalError(c, err)
	}
}

// applyPatch loads the subject, merges p and saves it under the subject's lock.
func (a *api) applyPatch(c *gin.Context, id uuid.UUID, p subject.Patch) (*subject.Subject, bool) {
	ctx := c.Request.Context()
	unlock := a.locks.Lock(id.String())
	defer unlock()

	s, err := a.subjects.Load(ctx, id)
	if err != nil {
		a.subjectError(c, err)
		return nil, false
	}
	updated := p.Apply(*s)
	updated.UpdatedAt = a.clock.Now().UTC()
	if err := a.subjects.Save(ctx, &updated); err != nil {
		a.subjectError(c, err)
		return nil, false
	}
	return &updated, true
}

func (a *api) patchSubject(c *gin.Context) {
	id, ok := subjectID(c)
	if !ok {
		return
	}
	var p subject.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		bindError(c, err)
		return
	}
	if p.Empty() {
		errorJSON(c, http.StatusBadRequest, "no fields to update")
		return
	}
	if g, ok := p.Gender.Get(); ok && validateVar(g, genderTag) != nil {
		errorJSON(c, http.StatusBadRequest, "gender must be one of male, female or others")
		return
	}
	if e, ok := p.Email.Get(); ok && validateVar(e, "email") != nil {
		errorJSON(c, http.StatusBadRequest, "email must be a valid email address")
		return
	}
	for _, name := range []subject.Option[string]{p.FirstName, p.LastName} {
		if v, ok := name.Get(); ok && strings.TrimSpace(v) == "" {
			errorJSON(c, http.StatusBadRequest, "first and last name cannot be blank")
			return
		}
	}
	s, ok := a.applyPatch(c, id, p)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject": s})
}

func (a *api) deleteSubject(c *gin.Context) {
	id, ok := subjectID(c)
	if !ok {
		return
	}
	if err := a.subjects.Delete(c.Request.Context(), id); err != nil {
		a.subjectError(c, err)
		return
	}
	a.log.Info("subject deleted", "id", id)
	c.Status(http.StatusNoContent)
}

func (a *api) conferenceKit(c *gin.Context) {
	id, ok := subjectID(c)
	if !ok {
		return
	}
	var req struct {
		Received *bool `json:"received" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	s, ok := a.applyPatch(c, id, subject.Patch{ConferenceKitReceived: subject.Some(*req.Received)})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"conference_kit_received": s.ConferenceKitReceived})
}

func (a *api) resetPassword(c *gin.Context) {
	id, ok := subjectID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	hash, err := auth.HashPassword(a.defaultPassword)
	if err != nil {
		a.internalError(c, err)
		return
	}

	unlock := a.locks.Lock(id.String())
	defer unlock()
	s, err := a.subjects.Load(ctx, id)
	if err != nil {
		a.subjectError(c, err)
		return
	}
	s.PasswordHash = hash
	s.UpdatedAt = a.clock.Now().UTC()
	if err := a.subjects.Save(ctx, s); err != nil {
		a.subjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset to the default"})
}

// Uploader stores profile pictures.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, r io.Reader, filename string) (*cloudinary.UploadResult, error)
	UploadDataURL(ctx context.Context, data string) (*cloudinary.UploadResult, error)
}

type disabledUploader struct{}

func (disabledUploader) Enabled() bool { return false }

func (disabledUploader) Upload(context.Context, io.Reader, string) (*cloudinary.UploadResult, error) {
	return nil, cloudinary.ErrNotConfigured
}

func (disabledUploader) UploadDataURL(context.Context, string) (*cloudinary.UploadResult, error) {
	return nil, cloudinary.ErrNotConfigured
}

var allowedPictureExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

func (a *api) uploadPicture(c *gin.Context) {
	id, ok := subjectID(c)
	if !ok {
		return
	}
	if !a.pictures.Enabled() {
		errorJSON(c, http.StatusServiceUnavailable, "image storage not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPictureSize+1<<10)
	file, header, err := c.Request.FormFile("picture")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "picture file field required (max 5 MB)")
		return
	}
	defer file.Close()
	if header.Size > maxPictureSize {
		errorJSON(c, http.StatusRequestEntityTooLarge, "picture exceeds 5 MB")
		return
	}
	if !allowedPictureExt[strings.ToLower(filepath.Ext(header.Filename))] {
		errorJSON(c, http.StatusBadRequest, "picture must be a jpg, png or webp image")
		return
	}

	if _, err := a.subjects.Load(c.Request.Context(), id); err != nil {
		a.subjectError(c, err)
		return
	}
	res, err := a.pictures.Upload(c.Request.Context(), file, header.Filename)
	if err != nil {
		a.log.Error("picture upload failed", "id", id, "err", err)
		errorJSON(c, http.StatusBadGateway, "image upload failed")
		return
	}
	s, ok := a.applyPatch(c, id, subject.Patch{PictureURL: subject.Some(res.SecureURL)})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"picture_url": s.PictureURL})
}
