package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/instagram"
	"igcrawler/pkg/logger"
)

const (
	csrfCookie    = "csrftoken"
	sessionCookie = "sessionid"
)

// Engine is the part of the request engine the bootstrapper needs.
type Engine interface {
	Do(ctx context.Context, req *instagram.Request) (*instagram.Response, error)
	Cookie(rawURL, name string) (string, bool)
}

// Session is an authenticated cookie session. It is read-only once
// Bootstrap returns and may be shared by concurrent jobs.
type Session struct {
	CSRFToken       string
	Username        string
	AuthenticatedAt time.Time
	baseURL         string
}

// Apply attaches the anti-forgery headers to req. Cookies travel through
// the engine's jar.
func (s *Session) Apply(req *instagram.Request) *instagram.Request {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set("X-CSRFToken", s.CSRFToken)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if s.baseURL != "" {
		req.Header.Set("Referer", s.baseURL)
	}
	return req
}

// Bootstrapper logs a fresh cookie session in.
type Bootstrapper struct {
	engine    Engine
	endpoints config.EndpointsConfig
	logger    logger.Logger
}

// NewBootstrapper creates a bootstrapper for the given endpoints
func NewBootstrapper(engine Engine, endpoints config.EndpointsConfig, log logger.Logger) *Bootstrapper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Bootstrapper{engine: engine, endpoints: endpoints, logger: log}
}

// loginReply is the subset of the login response that decides success.
type loginReply struct {
	Authenticated     *bool  `json:"authenticated"`
	User              *bool  `json:"user"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	ErrorType         string `json:"error_type"`
	CheckpointURL     string `json:"checkpoint_url"`
	TwoFactorRequired bool   `json:"two_factor_required"`
}

// Bootstrap visits the landing page for an anti-forgery token, posts the
// credentials and verifies the login succeeded.
func (b *Bootstrapper) Bootstrap(ctx context.Context, username, password string) (*Session, error) {
	log := b.logger.WithField("username", username)
	base := b.endpoints.BaseURL

	if _, err := b.engine.Do(ctx, instagram.Get(base)); err != nil {
		if errs.IsType(err, errs.ErrorTypeNetwork) {
			return nil, err
		}
		return nil, errs.NewSessionError("landing page request failed", err)
	}

	token, ok := b.engine.Cookie(base, csrfCookie)
	if !ok || token == "" {
		return nil, errs.NewSessionError(csrfCookie+" cookie not set by landing page", nil)
	}
	log.Debug("Received anti-forgery token")

	req := instagram.PostForm(b.endpoints.LoginURL, url.Values{
		"username": {username},
		"password": {password},
	})
	pre := &Session{CSRFToken: token, baseURL: base}
	pre.Apply(req)

	resp, err := b.engine.Do(ctx, req)
	if resp == nil {
		if err == nil {
			err = fmt.Errorf("empty response")
		}
		if errs.IsType(err, errs.ErrorTypeNetwork) {
			return nil, err
		}
		return nil, errs.NewAuthError("login request failed", 0, err)
	}

	if err := b.checkLogin(resp, err); err != nil {
		log.WithError(err).Warn("Login rejected")
		return nil, err
	}

	// the token is rotated on login
	if rotated, ok := b.engine.Cookie(base, csrfCookie); ok && rotated != "" {
		token = rotated
	}

	log.Info("Session authenticated")
	return &Session{
		CSRFToken:       token,
		Username:        username,
		AuthenticatedAt: time.Now(),
		baseURL:         base,
	}, nil
}

// checkLogin decides whether the login response is a success. statusErr
// is the engine's classification of a non-2xx status.
func (b *Bootstrapper) checkLogin(resp *instagram.Response, statusErr error) error {
	var reply loginReply
	decodeErr := json.Unmarshal(resp.Body, &reply)

	if decodeErr == nil {
		switch {
		case reply.CheckpointURL != "" || reply.ErrorType == "checkpoint_required" || reply.Message == "checkpoint_required":
			return errs.NewAuthError("login requires a checkpoint challenge", resp.Status, statusErr)
		case reply.TwoFactorRequired:
			return errs.NewAuthError("login requires two-factor authentication", resp.Status, statusErr)
		}
	}

	if statusErr != nil {
		return errs.NewAuthError("login rejected", resp.Status, statusErr)
	}

	if decodeErr == nil && reply.Authenticated != nil {
		if !*reply.Authenticated {
			if reply.User != nil && !*reply.User {
				return errs.NewAuthError("unknown username", resp.Status, nil)
			}
			return errs.NewAuthError("wrong credentials", resp.Status, nil)
		}
		return nil
	}

	if _, ok := b.engine.Cookie(b.endpoints.BaseURL, sessionCookie); ok {
		return nil
	}
	return errs.NewAuthError("login response carries no authentication marker", resp.Status, decodeErr)
}
