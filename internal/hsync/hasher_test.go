package hsync

import (
	"encoding/hex"
	"testing"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{in: "md5", want: AlgoMD5},
		{in: "sha1", want: AlgoSHA1},
		{in: "sha256", want: AlgoSHA256},
		{in: "blake2b", want: AlgoBLAKE2b},
		{in: "SHA256", want: AlgoSHA256},
		{in: "Blake2B", want: AlgoBLAKE2b},
		{in: "crc32", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAlgorithm(%q) error = nil, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAlgorithm(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewHasher_knownDigests(t *testing.T) {
	tests := []struct {
		algo  Algorithm
		input string
		want  string
	}{
		{
			algo:  AlgoMD5,
			input: "abc",
			want:  "900150983cd24fb0d6963f7d28e17f72",
		},
		{
			algo:  AlgoSHA1,
			input: "abc",
			want:  "a9993e364706816aba3e25717850c26c9cd0d89d",
		},
		{
			algo:  AlgoSHA256,
			input: "abc",
			want:  "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			algo:  AlgoBLAKE2b,
			input: "abc",
			want:  "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d17d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923",
		},
		{
			algo:  AlgoSHA256,
			input: "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo)+"/"+tt.input, func(t *testing.T) {
			h, err := NewHasher(tt.algo)
			if err != nil {
				t.Fatalf("NewHasher(%q) error = %v", tt.algo, err)
			}
			h.Write([]byte(tt.input))
			if got := hex.EncodeToString(h.Sum(nil)); got != tt.want {
				t.Errorf("digest = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewHasher_unknown(t *testing.T) {
	if _, err := NewHasher(Algorithm("xxh3")); err == nil {
		t.Fatal("NewHasher(xxh3) error = nil, want error")
	}
}
