package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	validation "github.com/go-ozzo/ozzo-validation"
)

type registerBody struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName string  `json:"displayName"`
	Location    *string `json:"location"`
	Occupation  *string `json:"occupation"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (b loginBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Email, validation.Required),
		validation.Field(&b.Password, validation.Required),
	)
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, statusResponse{Status: "ok"})
}

// register never forwards a role: self-registered identities get the default.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !s.decode(w, r, &body) {
		return
	}

	pair, err := s.identity.Register(r.Context(), services.RegisterRequest{
		Username:    body.Username,
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
		Location:    body.Location,
		Occupation:  body.Occupation,
		Role:        common.DefaultRole,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, pair)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !s.decode(w, r, &body) {
		return
	}
	if err := body.Validate(); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	pair, err := s.identity.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, pair)
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !s.decode(w, r, &body) {
		return
	}

	pair, err := s.identity.RefreshToken(r.Context(), body.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, pair)
}

// verifyEmailLink handles the link sent in the verification mail.
func (s *Server) verifyEmailLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := services.VerifyEmailRequest{
		IdentityID: q.Get("userId"),
		Token:      q.Get("token"),
		Location:   optional(q.Get("location")),
		Occupation: optional(q.Get("occupation")),
	}
	s.doVerify(w, r, req)
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req services.VerifyEmailRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.doVerify(w, r, req)
}

func (s *Server) doVerify(w http.ResponseWriter, r *http.Request, req services.VerifyEmailRequest) {
	res, err := s.identity.VerifyEmail(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, statusResponse{Status: string(res)})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.identity.Delete(r.Context(), actorID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, statusResponse{Status: "deleted"})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateProfileRequest
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.profiles.UpdateProfile(r.Context(), actorID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

func (s *Server) pictureUploadURL(w http.ResponseWriter, r *http.Request) {
	u, err := s.profiles.PictureUploadURL(r.Context(), actorID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, u)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed body: %v", common.ErrValidation, err))
		return false
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
