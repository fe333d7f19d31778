// internal/service/template_service.go
package service

import (
	"net/url"
	"strings"
)

// DefaultObjectPath lays out uploaded assets by record.
const DefaultObjectPath = "{collection}/{record}/{asset}.jpg"

// RenderTemplate fills {placeholders} in template. Values are path escaped
// so they cannot introduce extra path segments.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", url.PathEscape(v))
	}
	return result
}
