package procfs

import "testing"

func TestParseStatLine(t *testing.T) {
	// Real-looking /proc/[pid]/stat line: fields are 1-indexed in the
	// kernel's documentation, but rest[] here is 0-indexed starting right
	// after the ") ".
	line := "1234 (my proc (weird)) S 1 1234 1234 0 -1 4194560 100 0 0 0 50 10 0 0 20 0 4 0 12345 134217728 2048 18446744073709551615 4194304 4196452 140733928605696 0 0 0 0 0 0 0 0 0 17 3 0 0 0 0 0"

	st, err := parseStatLine(1234, line)
	if err != nil {
		t.Fatalf("parseStatLine: %v", err)
	}
	if st.State != "S" {
		t.Fatalf("State = %q, want S", st.State)
	}
	if st.UTime != 50 {
		t.Fatalf("UTime = %d, want 50", st.UTime)
	}
	if st.STime != 10 {
		t.Fatalf("STime = %d, want 10", st.STime)
	}
	if st.NumThreads != 4 {
		t.Fatalf("NumThreads = %d, want 4", st.NumThreads)
	}
	if st.StartTime != 12345 {
		t.Fatalf("StartTime = %d, want 12345", st.StartTime)
	}
	if st.VSizeBytes != 134217728 {
		t.Fatalf("VSizeBytes = %d, want 134217728", st.VSizeBytes)
	}
	if st.RSSPages != 2048 {
		t.Fatalf("RSSPages = %d, want 2048", st.RSSPages)
	}
}

func TestParseStatLineCommWithParens(t *testing.T) {
	// comm field itself contains ")(" to stress the last-')' split rule.
	line := "5 (sh (foo)bar)) R 1 5 5 0 -1 0 0 0 0 0 0 0 0 0 20 0 1 0 100 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0"
	st, err := parseStatLine(5, line)
	if err != nil {
		t.Fatalf("parseStatLine: %v", err)
	}
	if st.State != "R" {
		t.Fatalf("State = %q, want R", st.State)
	}
}

func TestParseStatLineMissingParenFails(t *testing.T) {
	if _, err := parseStatLine(1, "garbage with no parens"); err == nil {
		t.Fatal("expected error for missing parens")
	}
}

func TestParseStatLineTooShortFails(t *testing.T) {
	if _, err := parseStatLine(1, "1 (x) S 1 2"); err == nil {
		t.Fatal("expected error for too few fields")
	}
}

func TestClassifyFdTarget(t *testing.T) {
	cases := []struct {
		target string
		want   string
	}{
		{"socket:[12345]", "socket"},
		{"pipe:[6789]", "pipe"},
		{"anon_inode:[eventfd]", "anon_inode"},
		{"/dev/null", "device"},
		{"/some/dir/", "directory"},
		{"", "other"},
		{"/home/user/file.txt", "regular"},
	}
	for _, c := range cases {
		if got := classifyFdTarget(c.target); got != c.want {
			t.Errorf("classifyFdTarget(%q) = %q, want %q", c.target, got, c.want)
		}
	}
}
