package bucketnotify

// Map applies fn to every element of s. The result is never nil.
func Map[E, F any](s []E, fn func(E) F) []F {
	ret := make([]F, 0, len(s))
	for _, v := range s {
		ret = append(ret, fn(v))
	}
	return ret
}
