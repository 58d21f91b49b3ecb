package tuner

// Poll calls pred until it reports true or budget attempts are spent, and
// reports whether pred succeeded. The budget counts attempts, not time.
func Poll(budget int, pred func() bool) bool {
	for i := 0; i < budget; i++ {
		if pred() {
			return true
		}
	}
	return false
}
