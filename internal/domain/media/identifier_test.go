package media

import (
	"strings"
	"testing"
	"time"
)

// pinClock фиксирует источник времени на заданных миллисекундах.
func pinClock(t *testing.T, millis int64) {
	t.Helper()
	timeNow = func() time.Time { return time.UnixMilli(millis) }
	t.Cleanup(func() { timeNow = time.Now })
}

// TestGenerateIdentifier_Default проверяет путь по умолчанию:
// useFilename + uniqueFilename, без сохранения расширения.
func TestGenerateIdentifier_Default(t *testing.T) {
	pinClock(t, 1700000000123)

	got := GenerateIdentifier("test.jpg", "my/folder", KindImage, DefaultUploadOptions())
	want := "my/folder/test_1700000000123"
	if got != want {
		t.Errorf("GenerateIdentifier = %q, ожидался %q", got, want)
	}

	if strings.HasSuffix(got, ".jpg") {
		t.Errorf("расширение не должно попадать в идентификатор: %q", got)
	}
}

// TestGenerateIdentifier_Disabled проверяет стратегию disabled:
// санитизированное имя без токена уникальности и без расширения.
func TestGenerateIdentifier_Disabled(t *testing.T) {
	opts := DefaultUploadOptions()
	opts.Enabled = false
	opts.KeepRawExtension = true // игнорируется при disabled

	got := GenerateIdentifier("Test File.PDF", "my/folder", KindRaw, opts)
	want := "my/folder/test-file"
	if got != want {
		t.Errorf("GenerateIdentifier = %q, ожидался %q", got, want)
	}

	if strings.Contains(got, "_1") || strings.Contains(got, ".pdf") || strings.Contains(got, ".PDF") {
		t.Errorf("disabled не должен добавлять токен или расширение: %q", got)
	}
}

// TestGenerateIdentifier_KeepRawExtension проверяет сохранение исходного
// расширения для raw: дословно, с исходным регистром.
func TestGenerateIdentifier_KeepRawExtension(t *testing.T) {
	pinClock(t, 1700000000123)

	opts := DefaultUploadOptions()
	opts.KeepRawExtension = true

	got := GenerateIdentifier("test.raw", "my/folder", KindRaw, opts)
	want := "my/folder/test_1700000000123.raw"
	if got != want {
		t.Errorf("GenerateIdentifier = %q, ожидался %q", got, want)
	}

	// Регистр расширения сохраняется как есть
	got = GenerateIdentifier("Report.PDF", "my/folder", KindRaw, opts)
	want = "my/folder/report_1700000000123.PDF"
	if got != want {
		t.Errorf("GenerateIdentifier = %q, ожидался %q", got, want)
	}
}

// TestGenerateIdentifier_KeepRawExtension_NonRaw проверяет, что для
// image/video расширение не сохраняется даже при включённом флаге.
func TestGenerateIdentifier_KeepRawExtension_NonRaw(t *testing.T) {
	pinClock(t, 1700000000123)

	opts := DefaultUploadOptions()
	opts.KeepRawExtension = true

	got := GenerateIdentifier("photo.jpg", "my/folder", KindImage, opts)
	want := "my/folder/photo_1700000000123"
	if got != want {
		t.Errorf("GenerateIdentifier = %q, ожидался %q", got, want)
	}
}

// TestGenerateIdentifier_NoFilename проверяет основу "media" при
// useFilename: false.
func TestGenerateIdentifier_NoFilename(t *testing.T) {
	pinClock(t, 1700000000123)

	opts := DefaultUploadOptions()
	opts.UseFilename = false

	got := GenerateIdentifier("whatever.png", "my/folder", KindImage, opts)
	want := "my/folder/media_1700000000123"
	if got != want {
		t.Errorf("GenerateIdentifier = %q, ожидался %q", got, want)
	}
}

// TestGenerateIdentifier_NoUnique проверяет отключение токена уникальности.
func TestGenerateIdentifier_NoUnique(t *testing.T) {
	opts := DefaultUploadOptions()
	opts.UniqueFilename = false

	got := GenerateIdentifier("test.jpg", "my/folder", KindImage, opts)
	want := "my/folder/test"
	if got != want {
		t.Errorf("GenerateIdentifier = %q, ожидался %q", got, want)
	}
}

// TestGenerateIdentifier_CustomGenerator проверяет полный override:
// пользовательская функция определяет результат независимо от флагов.
func TestGenerateIdentifier_CustomGenerator(t *testing.T) {
	var gotFilename, gotPrefix, gotFolder string

	opts := UploadOptions{
		Enabled:          false, // игнорируется
		UseFilename:      false, // игнорируется
		UniqueFilename:   true,  // игнорируется
		KeepRawExtension: true,  // игнорируется
		CustomGenerator: func(filename, prefix, folder string) string {
			gotFilename, gotPrefix, gotFolder = filename, prefix, folder
			return "Custom/KEY с пробелом" // дословно, без санитизации
		},
	}

	got := GenerateIdentifier("test.jpg", "my/folder", KindImage, opts)
	if got != "Custom/KEY с пробелом" {
		t.Errorf("GenerateIdentifier = %q, ожидался дословный результат генератора", got)
	}

	if gotFilename != "test.jpg" {
		t.Errorf("filename = %q, ожидался %q", gotFilename, "test.jpg")
	}
	if gotPrefix != "my" {
		t.Errorf("prefix = %q, ожидался %q", gotPrefix, "my")
	}
	if gotFolder != "folder" {
		t.Errorf("folder = %q, ожидался %q", gotFolder, "folder")
	}
}

// TestGenerateIdentifier_EmptyFolder проверяет генерацию без папки.
func TestGenerateIdentifier_EmptyFolder(t *testing.T) {
	pinClock(t, 42)

	got := GenerateIdentifier("test.jpg", "", KindImage, DefaultUploadOptions())
	want := "test_42"
	if got != want {
		t.Errorf("GenerateIdentifier = %q, ожидался %q", got, want)
	}
}

// TestJoinIdentifier проверяет соединение папки и имени.
func TestJoinIdentifier(t *testing.T) {
	tests := []struct {
		folder string
		name   string
		want   string
	}{
		{"my/folder", "file", "my/folder/file"},
		{"/my/folder/", "file", "my/folder/file"},
		{"", "file", "file"},
		{"my/folder", "", "my/folder"},
		{"", "", ""},
	}

	for _, tt := range tests {
		got := JoinIdentifier(tt.folder, tt.name)
		if got != tt.want {
			t.Errorf("JoinIdentifier(%q, %q) = %q, ожидался %q", tt.folder, tt.name, got, tt.want)
		}
	}
}
