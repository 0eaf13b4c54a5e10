package service

import (
	"crypto/rand"
	"math/big"
)

const (
	orderNumberPrefix   = "ORD-"
	orderNumberLength   = 8
	orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// после стольких коллизий подряд создание заказа завершается ошибкой
	maxOrderNumberAttempts = 5
)

// generateOrderNumber возвращает номер вида ORD-XXXXXXXX из заглавных букв и цифр
func generateOrderNumber() (string, error) {
	size := big.NewInt(int64(len(orderNumberAlphabet)))

	buf := make([]byte, orderNumberLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		buf[i] = orderNumberAlphabet[n.Int64()]
	}
	return orderNumberPrefix + string(buf), nil
}
