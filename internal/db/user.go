package db

import (
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了用户模型
// APIToken 是客户端调用 API 时使用的静态 Bearer Token
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
	APIToken string `gorm:"uniqueIndex;not null"`
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，
// 则创建一个 bcrypt 哈希密码的用户并生成随机 API Token。
// Token 仅在创建时打印一次，供客户端配置使用。
func EnsureUser(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		token := uuid.NewString()
		if err := DB.Create(&User{Username: trimmedUser, Password: string(hashed), APIToken: token}).Error; err != nil {
			return err
		}

		log.Printf("created user %s with api token %s", trimmedUser, token)
		return nil
	}

	return nil
}
