package http

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"finance-ledger-go/internal/database"
	"finance-ledger-go/internal/models"
)

// AuthResponse wraps a token with its user.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) issueToken(c *gin.Context, user *models.User) {
	token, err := s.jwt.Generate(user.UUID)
	if err != nil {
		c.JSON(500, gin.H{"error": "token_generation_failed"})
		return
	}
	user.HasPin = user.PinHash != ""
	c.JSON(200, AuthResponse{Token: token, User: user})
}

// POST /v1/auth/guest
func (s *Server) authGuest(c *gin.Context) {
	var input struct {
		DeviceID string `json:"device_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err != io.EOF {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	var user models.User
	if input.DeviceID != "" {
		err := database.DB.Where("device_id = ? AND is_guest = ?", input.DeviceID, true).First(&user).Error
		if err == nil {
			s.issueToken(c, &user)
			return
		}
	}

	var deviceIDPtr *string
	if input.DeviceID != "" {
		deviceIDPtr = &input.DeviceID
	}

	user = models.User{
		UUID:     uuid.New().String(),
		IsGuest:  true,
		DeviceID: deviceIDPtr,
		Username: "Guest_" + uuid.New().String()[:8],
	}

	if err := database.DB.Create(&user).Error; err != nil {
		c.JSON(500, gin.H{"error": "failed_create_guest"})
		return
	}

	s.issueToken(c, &user)
}

// POST /v1/auth/register
func (s *Server) authRegister(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Pin      string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if len(input.Pin) < 4 {
		c.JSON(422, gin.H{"error": "pin_too_short"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Pin), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(500, gin.H{"error": "hash_failed"})
		return
	}

	user := models.User{
		UUID:     uuid.New().String(),
		Username: input.Username,
		PinHash:  string(hash),
	}
	if input.Email != "" {
		user.Email = &input.Email
	}
	if input.Phone != "" {
		user.Phone = &input.Phone
	}

	if err := database.DB.Create(&user).Error; err != nil {
		c.JSON(409, gin.H{"error": "user_exists"})
		return
	}

	s.issueToken(c, &user)
}

// POST /v1/auth/login
func (s *Server) authLogin(c *gin.Context) {
	var input struct {
		Identifier string `json:"identifier" binding:"required"` // username, email or phone
		Pin        string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := database.DB.
		Where("username = ? OR email = ? OR phone = ?", input.Identifier, input.Identifier, input.Identifier).
		First(&user).Error
	if err == gorm.ErrRecordNotFound {
		c.JSON(401, gin.H{"error": "invalid_credentials"})
		return
	} else if err != nil {
		c.JSON(500, gin.H{"error": "db_error"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(input.Pin)) != nil {
		c.JSON(401, gin.H{"error": "invalid_credentials"})
		return
	}

	s.issueToken(c, &user)
}
