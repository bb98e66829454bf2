//go:build !race

package academy

func passwordHashCost() int {
	return 12
}
