package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "mailboard-backend/internal/auth/domain"
	authdto "mailboard-backend/internal/auth/dto"
	"mailboard-backend/internal/auth/repository"
	"mailboard-backend/pkg/config"
	"mailboard-backend/pkg/crypto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// gmailScopes are requested at consent so the mail engine can read, modify
// and send on the user's behalf.
var gmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// IMAPVerifier checks that IMAP credentials actually work before they are
// stored. The provider package supplies the implementation.
type IMAPVerifier func(ctx context.Context, server string, port int, email, password string) error

type AuthUsecase interface {
	GoogleSignIn(ctx context.Context, code string) (*authdto.TokenResponse, error)
	IMAPSignIn(ctx context.Context, req *authdto.IMAPSignInRequest) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	LogoutAll(userID string) error
	ValidateToken(tokenString string) (*authdomain.User, error)
	RegisterFCMToken(userID, token, deviceInfo string) error
	UnregisterFCMToken(token string) error
}

// PostLoginHook runs after a successful sign-in, e.g. to kick off the initial
// email sync for the account.
type PostLoginHook func(userID string)

type authUsecase struct {
	userRepo     repository.UserRepository
	fcmTokenRepo repository.FCMTokenRepository
	config       *config.Config
	oauthConfig  *oauth2.Config
	verifyIMAP   IMAPVerifier
	postLogin    PostLoginHook
}

func NewAuthUsecase(userRepo repository.UserRepository, fcmTokenRepo repository.FCMTokenRepository, cfg *config.Config, verifyIMAP IMAPVerifier) *authUsecase {
	return &authUsecase{
		userRepo:     userRepo,
		fcmTokenRepo: fcmTokenRepo,
		config:       cfg,
		verifyIMAP:   verifyIMAP,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       gmailScopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// SetPostLoginHook wires the hook after construction; the email usecase that
// provides it depends on this one.
func (u *authUsecase) SetPostLoginHook(hook PostLoginHook) {
	u.postLogin = hook
}

// GoogleSignIn exchanges the authorization code for tokens, resolves the
// account's profile, and creates or updates the user.
func (u *authUsecase) GoogleSignIn(ctx context.Context, code string) (*authdto.TokenResponse, error) {
	token, err := u.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	oauthSvc, err := googleoauth.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo client: %w", err)
	}
	info, err := oauthSvc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	if info.VerifiedEmail == nil || !*info.VerifiedEmail {
		return nil, errors.New("google account email is not verified")
	}

	user, err := u.userRepo.FindByEmail(info.Email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &authdomain.User{
			Email:     info.Email,
			Name:      info.Name,
			AvatarURL: info.Picture,
			Provider:  authdomain.ProviderGoogle,
		}
		applyOAuthToken(user, token)
		if err := u.userRepo.Create(user); err != nil {
			return nil, err
		}
	} else {
		user.Name = info.Name
		user.AvatarURL = info.Picture
		applyOAuthToken(user, token)
		if err := u.userRepo.Update(user); err != nil {
			return nil, err
		}
	}

	if u.postLogin != nil {
		go u.postLogin(user.ID)
	}
	return u.generateTokens(user)
}

// applyOAuthToken keeps the stored refresh token when Google omits it: the
// consent screen only returns one on the first authorization.
func applyOAuthToken(user *authdomain.User, token *oauth2.Token) {
	user.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		user.RefreshToken = token.RefreshToken
	}
	user.TokenExpiry = token.Expiry
}

// IMAPSignIn verifies the credentials against the server, then stores the
// password encrypted.
func (u *authUsecase) IMAPSignIn(ctx context.Context, req *authdto.IMAPSignInRequest) (*authdto.TokenResponse, error) {
	if err := u.verifyIMAP(ctx, req.Server, req.Port, req.Email, req.Password); err != nil {
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	encrypted, err := crypto.Encrypt(req.Password, u.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt password: %w", err)
	}

	user, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = req.Email
	}

	if user == nil {
		user = &authdomain.User{
			Email:        req.Email,
			Name:         name,
			Provider:     authdomain.ProviderIMAP,
			ImapServer:   req.Server,
			ImapPort:     req.Port,
			ImapPassword: encrypted,
		}
		if err := u.userRepo.Create(user); err != nil {
			return nil, err
		}
	} else {
		if user.Provider != authdomain.ProviderIMAP {
			return nil, errors.New("account already registered with Google Sign-In")
		}
		user.Name = name
		user.ImapServer = req.Server
		user.ImapPort = req.Port
		user.ImapPassword = encrypted
		if err := u.userRepo.Update(user); err != nil {
			return nil, err
		}
	}

	if u.postLogin != nil {
		go u.postLogin(user.ID)
	}
	return u.generateTokens(user)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid refresh token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	stored, err := u.userRepo.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("refresh token expired")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	// Rotate: the old refresh token dies with this exchange.
	if err := u.userRepo.DeleteRefreshToken(refreshToken); err != nil {
		return nil, err
	}
	return u.generateTokens(user)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.userRepo.DeleteRefreshToken(refreshToken)
}

// LogoutAll revokes every session and push registration for the user, e.g.
// after a credential change.
func (u *authUsecase) LogoutAll(userID string) error {
	if err := u.userRepo.DeleteRefreshTokensByUser(userID); err != nil {
		return err
	}
	return u.fcmTokenRepo.DeleteTokensByUserID(userID)
}

func (u *authUsecase) RegisterFCMToken(userID, token, deviceInfo string) error {
	return u.fcmTokenRepo.SaveToken(userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(token string) error {
	return u.fcmTokenRepo.DeleteToken(token)
}

func (u *authUsecase) generateTokens(user *authdomain.User) (*authdto.TokenResponse, error) {
	accessToken, err := u.signToken(jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.signToken(jwt.MapClaims{
		"user_id":  user.ID,
		"token_id": uuid.New().String(),
		"exp":      time.Now().Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":      time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := u.userRepo.SaveRefreshToken(&authdomain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(u.config.JWTRefreshExpiry),
	}); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (u *authUsecase) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}
	return user, nil
}
