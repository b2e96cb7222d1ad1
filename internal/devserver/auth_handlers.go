package devserver

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-workforce-client/internal/utils"
	"github.com/jrsteele09/go-workforce-client/oauthmodel"
	"github.com/jrsteele09/go-workforce-client/tenants"
	"github.com/jrsteele09/go-workforce-client/token/jwt"
	"github.com/jrsteele09/go-workforce-client/users"
)

// respondSession writes a token pair. The administrative audience answers
// with a bare {data} body.
func respondSession(w http.ResponseWriter, audience string, pair oauthmodel.TokenPair) {
	if audience == jwt.AudienceAdmin {
		writeBare(w, pair, nil)
		return
	}
	writeOK(w, http.StatusOK, pair)
}

func principal(u *users.User) *oauthmodel.Principal {
	return &oauthmodel.Principal{
		ID:       u.ID,
		Email:    u.Email,
		TenantID: u.TenantID,
		Roles:    utils.Strings(u.Roles),
	}
}

// issuePair creates an access token and a refresh token family for u.
func (s *Server) issuePair(u *users.User, audience string) (oauthmodel.TokenPair, error) {
	access, err := s.issueAccess(u, audience)
	if err != nil {
		return oauthmodel.TokenPair{}, err
	}
	rt, err := s.refresh.Create(u.ID, u.TenantID, audience)
	if err != nil {
		return oauthmodel.TokenPair{}, err
	}
	return oauthmodel.TokenPair{
		AccessToken:  access,
		RefreshToken: rt.Token,
		ExpiresIn:    int(s.issuer.TTL().Seconds()),
	}, nil
}

func (s *Server) issueAccess(u *users.User, audience string) (string, error) {
	access, claims, err := s.issuer.Issue(jwt.Subject{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Roles:    utils.Strings(u.Roles),
	}, audience)
	if err != nil {
		return "", err
	}
	s.issued.add(claims.ID, claims.ExpiresAt.Time)
	return access, nil
}

// allowedIn reports whether u may hold a session in audience.
func (s *Server) allowedIn(u *users.User, audience string) (bool, string) {
	if audience == jwt.AudienceAdmin {
		return u.IsSystemAccount(), "Not an administrative account"
	}
	if u.TenantID == "" {
		return false, "Not a tenant account"
	}
	t, err := s.tenants.Get(u.TenantID)
	if err != nil {
		return false, "Unknown tenant"
	}
	if t.Status == tenants.StatusSuspended {
		return false, "Tenant is suspended"
	}
	return true, ""
}

func (s *Server) LoginHandler(audience string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauthmodel.LoginRequest
		if !decodeJSON(w, r, &req) || s.validationFailed(w, req) {
			return
		}

		u, err := s.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil || u.Status == users.StatusDisabled || !users.CheckPasswordHash(req.Password, u.PasswordHash) {
			writeFail(w, http.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS")
			return
		}
		if req.TenantID != "" && audience == jwt.AudienceTenant && req.TenantID != u.TenantID {
			writeFail(w, http.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS")
			return
		}
		if ok, reason := s.allowedIn(u, audience); !ok {
			writeFail(w, http.StatusForbidden, reason, "FORBIDDEN")
			return
		}

		pair, err := s.issuePair(u, audience)
		if err != nil {
			writeError(w, err)
			return
		}
		pair.User = principal(u)
		_ = s.users.SetLastLogin(u.ID, NowTimeFunc().UTC())
		s.logger.Info().Str("user", u.ID).Str("audience", audience).Msg("login")
		respondSession(w, audience, pair)
	}
}

func (s *Server) RefreshHandler(audience string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauthmodel.RefreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.RefreshToken) == "" {
			writeFail(w, http.StatusBadRequest, "Refresh token is required", "BAD_REQUEST")
			return
		}
		if s.faults.refreshFails() {
			writeFail(w, http.StatusUnauthorized, "Refresh token rejected", "INVALID_REFRESH_TOKEN")
			return
		}

		rt, err := s.refresh.Rotate(req.RefreshToken, audience)
		if err != nil {
			s.logger.Info().Err(err).Str("audience", audience).Msg("refresh rejected")
			writeFail(w, http.StatusUnauthorized, "Refresh token rejected", "INVALID_REFRESH_TOKEN")
			return
		}
		u, err := s.users.GetByID(rt.UserID)
		if err != nil || u.Status == users.StatusDisabled {
			_ = s.refresh.Revoke(rt.Token)
			writeFail(w, http.StatusUnauthorized, "Account no longer active", "INVALID_REFRESH_TOKEN")
			return
		}

		access, err := s.issueAccess(u, audience)
		if err != nil {
			writeError(w, err)
			return
		}
		respondSession(w, audience, oauthmodel.TokenPair{
			AccessToken:  access,
			RefreshToken: rt.Token,
			ExpiresIn:    int(s.issuer.TTL().Seconds()),
		})
	}
}

// LogoutHandler revokes the presented refresh token family and, when the
// bearer token is still valid, the access token too.
func (s *Server) LogoutHandler(audience string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauthmodel.LogoutRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		if req.RefreshToken != "" {
			if err := s.refresh.Revoke(req.RefreshToken); err != nil {
				writeError(w, err)
				return
			}
		}
		if claims, err := s.issuer.Verify(bearerToken(r), audience); err == nil {
			s.revoked.Add(claims.ID, claims.ExpiresAt.Time)
		}
		if audience == jwt.AudienceAdmin {
			writeBare(w, map[string]bool{"loggedOut": true}, nil)
			return
		}
		writeOK(w, http.StatusOK, map[string]bool{"loggedOut": true})
	}
}
