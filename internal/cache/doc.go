// Package cache отвечает за кэширование step runs.
//
// Включает:
//   - key.go    — вычисление cache key по конфигурации шага и входам
//   - lookup.go — поиск предыдущего успешного step run с тем же ключом
package cache
