package utils

import (
	"crypto/rand"
	"math/big"
)

// 房间码字符集，去掉了易混淆的0/O/1/I
const roomCodeCharset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateRoomCode 生成指定长度的房间码
func GenerateRoomCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	code := make([]byte, length)
	max := big.NewInt(int64(len(roomCodeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = roomCodeCharset[n.Int64()]
	}
	return string(code), nil
}
