package handler

import (
	"mime/multipart"
	"net/http"

	"civic-polls/internal/services"
	"civic-polls/internal/storage"
	"civic-polls/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	service *services.ProfileService
}

func NewProfileHandler(service *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toProfileDTO(p)))
}

// Update saves the registration form. Accepts multipart/form-data with
// optional "headshot" and "passport" files.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var form httpdto.RegistrationForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, "full name is required")
		return
	}

	headshot, closeHeadshot, err := formUpload(c, "headshot")
	if err != nil {
		badRequest(c, "could not read headshot")
		return
	}
	defer closeHeadshot()
	passport, closePassport, err := formUpload(c, "passport")
	if err != nil {
		badRequest(c, "could not read passport")
		return
	}
	defer closePassport()

	p, err := h.service.CompleteRegistration(c.Request.Context(), userID, services.RegistrationInput{
		FullName:   form.FullName,
		Email:      form.Email,
		Location:   form.Location,
		Occupation: form.Occupation,
		Headshot:   headshot,
		Passport:   passport,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toProfileDTO(p)))
}

// SubmitVerification uploads the "passport" file and requests review.
func (h *ProfileHandler) SubmitVerification(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	passport, closePassport, err := formUpload(c, "passport")
	if err != nil {
		badRequest(c, "could not read passport")
		return
	}
	defer closePassport()

	p, err := h.service.SubmitVerification(c.Request.Context(), userID, passport)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toProfileDTO(p)))
}

// formUpload opens an optional multipart file. A missing part yields nil.
func formUpload(c *gin.Context, field string) (*services.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err == http.ErrMissingFile || err == http.ErrNotMultipart {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*services.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	// The declared Content-Type is ignored; only the file's bytes count.
	contentType, err := storage.SniffContentType(f)
	if err != nil {
		_ = f.Close()
		return nil, func() {}, err
	}
	return &services.Upload{
		Body:        f,
		Size:        fh.Size,
		ContentType: contentType,
	}, func() { _ = f.Close() }, nil
}
