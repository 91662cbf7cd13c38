package auth

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt work factor used for new hashes.
const PasswordCost = bcrypt.DefaultCost

// HashPassword 使用 bcrypt 对密码进行哈希处理。
// bcrypt 每次都会加盐，相同输入两次哈希的结果不同。
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(bytes), err
}

// CheckPasswordHash 验证提供的密码是否与其 bcrypt 哈希值匹配。
// 比较在常数时间内完成。
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
