package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher 密码哈希器，cost 为 bcrypt 计算强度
type Hasher struct {
	cost int
}

// NewHasher 创建Hasher，cost 超出 bcrypt 允许范围时使用默认值
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash 生成密码哈希
func (h *Hasher) Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify 校验密码，哈希格式不合法同样视为不匹配
func (h *Hasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
