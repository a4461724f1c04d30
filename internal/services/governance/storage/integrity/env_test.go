package integrity

import "testing"

func setKeyEnv(t *testing.T, keys, key, keyID string) {
	t.Helper()
	t.Setenv("GOVERNING_SPACE_EVENT_HMAC_KEYS", keys)
	t.Setenv("GOVERNING_SPACE_EVENT_HMAC_KEY", key)
	t.Setenv("GOVERNING_SPACE_EVENT_HMAC_KEY_ID", keyID)
}

func TestKeyringFromEnv(t *testing.T) {
	tests := []struct {
		name      string
		keys      string
		key       string
		keyID     string
		wantErr   bool
		wantKeyID string
	}{
		{name: "requires key", wantErr: true},
		{name: "single key", key: "secret", wantKeyID: "v1"},
		{name: "whitespace key spec falls back", keys: "   ", key: "secret", wantKeyID: "v1"},
		{name: "whitespace key id uses default", key: "secret", keyID: "   ", wantKeyID: "v1"},
		{name: "key spec", keys: "k1=one,k2=two", keyID: "k2", wantKeyID: "k2"},
		{name: "empty entries skipped", keys: "k1=one, ,k2=two", keyID: "k1", wantKeyID: "k1"},
		{name: "invalid entry", keys: "bad-entry", keyID: "k1", wantErr: true},
		{name: "empty value", keys: "k1=one,k2=", keyID: "k1", wantErr: true},
		{name: "active id missing from spec", keys: "k1=one", keyID: "k3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setKeyEnv(t, tt.keys, tt.key, tt.keyID)
			ring, err := KeyringFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("keyring from env: %v", err)
			}
			if got := ring.ActiveKeyID(); got != tt.wantKeyID {
				t.Fatalf("active key id = %s, want %s", got, tt.wantKeyID)
			}
		})
	}
}
