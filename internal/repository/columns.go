package repository

import "strings"

// prefixed добавляет алиас таблицы к списку колонок для запросов с JOIN
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, col := range parts {
		parts[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}
