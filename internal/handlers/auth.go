package handlers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"crmapi/internal/database"
	"crmapi/internal/logger"
	"crmapi/internal/models"
)

var (
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	Rdb        *redis.Client // Shared with middleware

	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

func init() {
	// Generate RSA keys on boot (in production, load from files)
	var err error
	PrivateKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	PublicKey = &PrivateKey.PublicKey
}

// InitAuth applies token TTLs from config.
func InitAuth(accessTTL, refreshTTL time.Duration) {
	accessTokenTTL = accessTTL
	refreshTokenTTL = refreshTTL
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User        models.User `json:"user"`
	AccessToken string      `json:"access_token"`
}

func Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		SendError(w, http.StatusBadRequest, "Name, email and a password of at least 8 characters are required")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "Error hashing password")
		return
	}

	// New users have no organization yet; the onboarding flow creates one.
	var user models.User
	err = database.DB.QueryRowContext(r.Context(),
		"INSERT INTO users (name, email, password) VALUES ($1, $2, $3) RETURNING id, name, email, created_at",
		req.Name, req.Email, string(hashedPassword)).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		logger.Get().Error("error creating user", zap.Error(err))
		SendError(w, http.StatusInternalServerError, "Error creating user")
		return
	}

	accessToken, refreshToken, err := generateTokens(r, user.ID)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "Error generating tokens")
		return
	}

	setRefreshCookie(w, refreshToken, int(refreshTokenTTL.Seconds()))

	SendSuccess(w, http.StatusCreated, "User registered successfully", AuthResponse{
		User:        user,
		AccessToken: accessToken,
	})
}

func Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		SendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var user models.User
	err = database.DB.QueryRowContext(r.Context(),
		"SELECT id, name, email, password, active_org_id, created_at FROM users WHERE email=$1", req.Email).Scan(
		&user.ID, &user.Name, &user.Email, &user.Password, &user.ActiveOrgID, &user.CreatedAt)
	if err != nil {
		SendError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password))
	if err != nil {
		SendError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	accessToken, refreshToken, err := generateTokens(r, user.ID)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "Error generating tokens")
		return
	}

	setRefreshCookie(w, refreshToken, int(refreshTokenTTL.Seconds()))

	SendSuccess(w, http.StatusOK, "Login successful", AuthResponse{
		User:        user,
		AccessToken: accessToken,
	})
}

func RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refresh_token")
	if err != nil {
		SendError(w, http.StatusUnauthorized, "No refresh token")
		return
	}

	token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return PublicKey, nil
	})
	if err != nil || !token.Valid {
		SendError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		SendError(w, http.StatusUnauthorized, "Invalid token claims")
		return
	}

	jti, ok := claims["jti"].(string)
	if !ok {
		SendError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		SendError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	userID := int(userIDFloat)

	// The refresh token must still be live in redis.
	val, err := Rdb.Get(r.Context(), fmt.Sprintf("refresh_token:%s", jti)).Result()
	if err != nil || val != fmt.Sprintf("%d", userID) {
		SendError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	// Blacklist the access token paired with this refresh token so the
	// old one stops working after rotation.
	oldAccessJti, err := Rdb.Get(r.Context(), fmt.Sprintf("refresh_to_access:%s", jti)).Result()
	if err == nil && oldAccessJti != "" {
		Rdb.Set(r.Context(), fmt.Sprintf("blacklist:access_token:%s", oldAccessJti), "1", accessTokenTTL)
	}

	// Rotation: the old refresh token and its mapping are gone.
	Rdb.Del(r.Context(), fmt.Sprintf("refresh_token:%s", jti))
	Rdb.Del(r.Context(), fmt.Sprintf("refresh_to_access:%s", jti))

	accessToken, refreshToken, err := generateTokens(r, userID)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "Error generating tokens")
		return
	}

	setRefreshCookie(w, refreshToken, int(refreshTokenTTL.Seconds()))

	SendSuccess(w, http.StatusOK, "Token refreshed successfully", map[string]string{"access_token": accessToken})
}

func generateTokens(r *http.Request, userID int) (string, string, error) {
	accessJti := uuid.New().String()
	accessClaims := jwt.MapClaims{
		"user_id": userID,
		"jti":     accessJti,
		"exp":     time.Now().Add(accessTokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodRS256, accessClaims)
	accessTokenString, err := accessToken.SignedString(PrivateKey)
	if err != nil {
		return "", "", err
	}

	err = Rdb.Set(r.Context(), fmt.Sprintf("access_token:%s", accessJti), fmt.Sprintf("%d", userID), accessTokenTTL).Err()
	if err != nil {
		return "", "", err
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"user_id": userID,
		"jti":     refreshJti,
		"exp":     time.Now().Add(refreshTokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	refreshToken := jwt.NewWithClaims(jwt.SigningMethodRS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString(PrivateKey)
	if err != nil {
		return "", "", err
	}

	err = Rdb.Set(r.Context(), fmt.Sprintf("refresh_token:%s", refreshJti), fmt.Sprintf("%d", userID), refreshTokenTTL).Err()
	if err != nil {
		return "", "", err
	}

	// Map refresh JTI to access JTI so rotation can blacklist the old
	// access token.
	err = Rdb.Set(r.Context(), fmt.Sprintf("refresh_to_access:%s", refreshJti), accessJti, refreshTokenTTL).Err()
	if err != nil {
		return "", "", err
	}

	return accessTokenString, refreshTokenString, nil
}

func setRefreshCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    value,
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		Path:     "/",
		MaxAge:   maxAge,
	})
}

func Logout(w http.ResponseWriter, r *http.Request) {
	// Blacklist the presented access token for the rest of its lifetime.
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != "" {
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return PublicKey, nil
			})
			if err == nil && token.Valid {
				if claims, ok := token.Claims.(jwt.MapClaims); ok {
					if jti, ok := claims["jti"].(string); ok {
						if exp, ok := claims["exp"].(float64); ok {
							remaining := time.Until(time.Unix(int64(exp), 0))
							if remaining > 0 {
								Rdb.Set(r.Context(), fmt.Sprintf("blacklist:access_token:%s", jti), "1", remaining)
							}
						}
					}
				}
			}
		}
	}

	// Drop the refresh token from redis if the cookie is present.
	cookie, err := r.Cookie("refresh_token")
	if err == nil {
		token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return PublicKey, nil
		})
		if err == nil && token.Valid {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if jti, ok := claims["jti"].(string); ok {
					Rdb.Del(r.Context(), fmt.Sprintf("refresh_token:%s", jti))
					Rdb.Del(r.Context(), fmt.Sprintf("refresh_to_access:%s", jti))
				}
			}
		}
	}

	setRefreshCookie(w, "", -1)

	SendSuccessNoData(w, http.StatusOK, "Logout successful")
}
