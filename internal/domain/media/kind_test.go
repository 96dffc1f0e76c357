package media

import "testing"

// TestKindForExtension проверяет классификацию расширений по таблицам.
func TestKindForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want Kind
	}{
		{"jpg", KindImage},
		{".jpg", KindImage},
		{"png", KindImage},
		{"svg", KindImage},
		{"webp", KindImage},
		{"mp4", KindVideo},
		{"mov", KindVideo},
		{"mp3", KindVideo}, // аудио идёт видеоконвейером
		{"wav", KindVideo},
		{"pdf", KindRaw},
		{"docx", KindRaw},
		{"zip", KindRaw},
		{"csv", KindRaw},
		{"xyz", KindAuto},
		{"", KindAuto},
		{".", KindAuto},
	}

	for _, tt := range tests {
		got := KindForExtension(tt.ext)
		if got != tt.want {
			t.Errorf("KindForExtension(%q) = %q, ожидался %q", tt.ext, got, tt.want)
		}
	}
}

// TestKindForExtension_CaseInsensitive проверяет, что классификация
// не зависит от регистра: .JPG эквивалентен .jpg.
func TestKindForExtension_CaseInsensitive(t *testing.T) {
	pairs := []struct {
		upper string
		lower string
	}{
		{".JPG", ".jpg"},
		{".PNG", ".png"},
		{".GIF", ".gif"},
		{".WEBP", ".webp"},
		{".MP4", ".mp4"},
		{".PDF", ".pdf"},
		{".Tiff", ".tiff"},
	}

	for _, p := range pairs {
		if KindForExtension(p.upper) != KindForExtension(p.lower) {
			t.Errorf("KindForExtension(%q) != KindForExtension(%q)", p.upper, p.lower)
		}
	}

	if KindForExtension(".JPG") != KindImage {
		t.Errorf("KindForExtension(.JPG) = %q, ожидался image", KindForExtension(".JPG"))
	}
}

// TestKindForFilename проверяет классификацию по полному имени файла.
func TestKindForFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     Kind
	}{
		{"photo.jpg", KindImage},
		{"clip.MOV", KindVideo},
		{"report.pdf", KindRaw},
		{"archive.tar.gz", KindRaw},
		{"noextension", KindAuto},
		{"weird.binfmt", KindAuto},
		{"", KindAuto},
	}

	for _, tt := range tests {
		got := KindForFilename(tt.filename)
		if got != tt.want {
			t.Errorf("KindForFilename(%q) = %q, ожидался %q", tt.filename, got, tt.want)
		}
	}
}

// TestParseKind проверяет разбор строки в Kind.
func TestParseKind(t *testing.T) {
	for _, valid := range []string{"image", "video", "raw", "auto"} {
		k, err := ParseKind(valid)
		if err != nil {
			t.Errorf("ParseKind(%q): неожиданная ошибка: %v", valid, err)
		}
		if string(k) != valid {
			t.Errorf("ParseKind(%q) = %q", valid, k)
		}
	}

	for _, invalid := range []string{"", "IMAGE", "document"} {
		if _, err := ParseKind(invalid); err == nil {
			t.Errorf("ParseKind(%q): ожидалась ошибка", invalid)
		}
	}
}
