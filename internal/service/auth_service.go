package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/Voldemort0731/fiwb-mvp/internal/dto"
	"github.com/Voldemort0731/fiwb-mvp/internal/entity"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/serverutils"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/specification"
	"github.com/Voldemort0731/fiwb-mvp/internal/repository/unitofwork"
)

const (
	userinfoURL    = "https://www.googleapis.com/oauth2/v2/userinfo"
	sessionTTL     = 7 * 24 * time.Hour
	loginTimeout   = 15 * time.Second
	profileTimeout = 10 * time.Second
)

type IAuthService interface {
	// Login exchanges a Google auth code for tokens, upserts the user, issues
	// a session JWT, and starts the initial classroom sync in the background.
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Me(ctx context.Context, userId uuid.UUID) (*dto.MeResponse, error)
}

type googleProfile struct {
	ID      string `json:"id"`
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type authService struct {
	uowFactory  unitofwork.RepositoryFactory
	oauthConfig *oauth2.Config
	jwtSecret   string
	syncService ISyncService
	logger      logger.ILogger
}

func NewAuthService(
	uowFactory unitofwork.RepositoryFactory,
	oauthConfig *oauth2.Config,
	jwtSecret string,
	syncService ISyncService,
	log logger.ILogger,
) IAuthService {
	return &authService{
		uowFactory:  uowFactory,
		oauthConfig: oauthConfig,
		jwtSecret:   jwtSecret,
		syncService: syncService,
		logger:      log,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	exchangeCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	// Popup-flow clients exchange with the literal "postmessage" redirect.
	token, err := s.oauthConfig.Exchange(exchangeCtx, req.Code,
		oauth2.SetAuthURLParam("redirect_uri", "postmessage"))
	if err != nil {
		s.logger.Error("auth", "token exchange failed", map[string]interface{}{"error": err.Error()})
		return nil, fiber.NewError(fiber.StatusBadRequest, "Google authentication failed")
	}

	profile, err := s.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		s.logger.Error("auth", "profile fetch failed", map[string]interface{}{"error": err.Error()})
		return nil, fiber.NewError(fiber.StatusBadRequest, "Failed to retrieve Google profile")
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "No email in Google response")
	}
	googleID := profile.ID
	if googleID == "" {
		googleID = profile.Sub
	}

	user, err := s.upsertUser(ctx, email, googleID, profile, token)
	if err != nil {
		return nil, err
	}

	s.logger.Info("auth", "login succeeded", map[string]interface{}{
		"user":              email,
		"has_refresh_token": token.RefreshToken != "",
	})

	// Tokens are fresh, so the initial sync runs with them right away.
	go func(userId uuid.UUID) {
		if err := s.syncService.SyncAllCourses(context.Background(), userId, false); err != nil {
			s.logger.Error("auth", "initial sync failed", map[string]interface{}{
				"user":  email,
				"error": err.Error(),
			})
		}
	}(user.Id)

	jwt, err := serverutils.GenerateToken(s.jwtSecret, user.Id.String(), user.Email, sessionTTL)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Status:  "success",
		UserId:  user.Id.String(),
		Email:   user.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
		Token:   jwt,
	}, nil
}

func (s *authService) fetchProfile(ctx context.Context, accessToken string) (*googleProfile, error) {
	reqCtx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *authService) upsertUser(ctx context.Context, email, googleID string, profile *googleProfile, token *oauth2.Token) (*entity.User, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	users := uow.UserRepository()

	var user *entity.User
	if googleID != "" {
		found, err := users.FindOne(ctx, specification.Filter("google_id", googleID))
		if err != nil {
			return nil, err
		}
		user = found
	}
	if user == nil {
		found, err := users.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		user = found
	}

	now := time.Now()
	if user == nil {
		s.logger.Info("auth", "creating new user", map[string]interface{}{"user": email})
		user = &entity.User{
			Id:       uuid.New(),
			Email:    email,
			FullName: profile.Name,
		}
		applyTokens(user, googleID, profile, token)
		user.LastSynced = &now
		if err := users.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	user.Email = email
	if profile.Name != "" {
		user.FullName = profile.Name
	}
	applyTokens(user, googleID, profile, token)
	user.LastSynced = &now
	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func applyTokens(user *entity.User, googleID string, profile *googleProfile, token *oauth2.Token) {
	if googleID != "" {
		user.GoogleId = &googleID
	}
	if profile.Picture != "" {
		user.AvatarURL = &profile.Picture
	}
	access := token.AccessToken
	user.AccessToken = &access
	// Google only sends the refresh token on first consent; keep the stored
	// one when the response omits it.
	if token.RefreshToken != "" {
		refresh := token.RefreshToken
		user.RefreshToken = &refresh
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		user.TokenExpiry = &expiry
	}
}

func (s *authService) Me(ctx context.Context, userId uuid.UUID) (*dto.MeResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "User not found")
	}

	res := &dto.MeResponse{
		Id:        user.Id.String(),
		Email:     user.Email,
		FullName:  user.FullName,
		AvatarURL: user.AvatarURL,
	}
	if user.LastSynced != nil {
		synced := user.LastSynced.UTC().Format(time.RFC3339)
		res.LastSynced = &synced
	}
	return res, nil
}
