package cmd

import "time"

func intervalFromSeconds(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(n) * time.Second
}

func nowUnix() int64 {
	return time.Now().Unix()
}
