package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ProjectIDPattern определяет допустимый формат идентификатора проекта
// Латинские буквы, цифры, точка, дефис и нижнее подчеркивание
// Длина: 1-128 символов
var ProjectIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

const (
	// MaxProjectIDLen максимальная длина идентификатора проекта
	MaxProjectIDLen = 128
	// MaxNodeNameLen максимальная длина имени файла или папки (в символах)
	MaxNodeNameLen = 255
)

// ValidateProjectID проверяет идентификатор проекта. Он входит в путь
// websocket-эндпоинта и ключи хранилищ.
func ValidateProjectID(projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project id cannot be empty")
	}

	if len(projectID) > MaxProjectIDLen {
		return fmt.Errorf("project id must not exceed %d characters", MaxProjectIDLen)
	}

	if !ProjectIDPattern.MatchString(projectID) {
		return fmt.Errorf("project id can only contain letters, numbers, '.', '-' and '_'")
	}

	return nil
}

// ValidateNodeName проверяет имя файла или папки дерева проекта.
// Имя не может быть пустым, "." или "..", содержать "/" или управляющие символы.
func ValidateNodeName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name %q is reserved", name)
	}

	if strings.Contains(name, "/") {
		return fmt.Errorf("name must not contain '/'")
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("name must be valid UTF-8")
	}

	if utf8.RuneCountInString(name) > MaxNodeNameLen {
		return fmt.Errorf("name must not exceed %d characters", MaxNodeNameLen)
	}

	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("name must not contain control characters")
		}
	}

	return nil
}
