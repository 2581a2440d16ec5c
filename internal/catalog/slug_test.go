package catalog

import "testing"

// Slugifyが代表的なタイトルを正しく変換することを検証
func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"基本形", "One Piece", "one-piece"},
		{"記号除去", "Jujutsu Kaisen: Cursed!", "jujutsu-kaisen-cursed"},
		{"連続空白", "Attack   on   Titan", "attack-on-titan"},
		{"両端の空白", "  Naruto  ", "naruto"},
		{"既存ハイフン", "Re-Zero - Starting Life", "re-zero-starting-life"},
		{"空文字", "", ""},
		{"記号のみ", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.title)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

// 同一タイトルからは常に同一スラッグが導出されることを検証
func TestSlugify_Deterministic(t *testing.T) {
	title := "Chainsaw Man: Part 2"
	first := Slugify(title)
	for i := 0; i < 5; i++ {
		if got := Slugify(title); got != first {
			t.Fatalf("Slugify(%q) = %q, want %q (非決定的)", title, got, first)
		}
	}
}
