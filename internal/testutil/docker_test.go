package testutil

import "testing"

func TestContainerSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"TestManagerLifecycle", "testmanagerlifecycle"},
		{"TestServer/sub_case", "testserver-sub-case"},
		{"Test weird:name!", "testweirdname"},
		{"TestAVeryLongNameThatKeepsGoingPastTheLimit", "testaverylongnamethatkeepsgoin"},
	}
	for _, tt := range tests {
		if got := containerSlug(tt.in); got != tt.want {
			t.Errorf("containerSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
