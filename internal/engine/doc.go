// Package engine содержит разбор структуры pipeline.
//
// Включает:
//   - validate.go — проверка deployment перед запуском
//   - dag.go      — построение и обход DAG (directed acyclic graph)
//   - template.go — рендеринг параметров шагов ({{ .Inputs.x }})
//
// Engine отвечает за понимание структуры pipeline и определение
// порядка запуска шагов на основе их зависимостей.
package engine
