package rewards

import "crypto/rand"

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodePrefix marks every reward code issued by this program.
const CodePrefix = "RWD-"

// generateCode returns length random characters from the code alphabet.
func generateCode(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
