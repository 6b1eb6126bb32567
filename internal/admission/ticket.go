package admission

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const ticketLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewTicket генерирует тикет вида OSIS25-100000-A.
func NewTicket(prefix string, now time.Time) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "OSIS"
	}
	number, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate ticket number: %w", err)
	}
	letter, err := rand.Int(rand.Reader, big.NewInt(int64(len(ticketLetters))))
	if err != nil {
		return "", fmt.Errorf("generate ticket suffix: %w", err)
	}
	return fmt.Sprintf("%s%02d-%06d-%c", prefix, now.Year()%100, number.Int64()+100000, ticketLetters[letter.Int64()]), nil
}
