//go:build race

package academy

import "golang.org/x/crypto/bcrypt"

// race builds are slow enough that cost 12 trips test timeouts
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
