package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Conduit/internal/domain"
)

// Node — узел в DAG.
type Node struct {
	// Name — имя шага.
	Name string

	// Step — шаг из deployment.
	Step domain.Step

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф шагов pipeline.
type DAG struct {
	// Nodes — все узлы графа (имя шага → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа), по имени.
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	// При равенстве шаги идут по имени, поэтому порядок воспроизводим.
	Order []*Node
}

// BuildDAG строит DAG из deployment.
//
// Ребро A → B появляется, если B объявляет A в upstream_steps
// или берёт вход из выхода A.
func BuildDAG(d *domain.Deployment) (*DAG, error) {
	dag := &DAG{
		Nodes: make(map[string]*Node, len(d.Steps)),
	}

	for name, step := range d.Steps {
		dag.Nodes[name] = &Node{
			Name:       name,
			Step:       step,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	for _, name := range sortedNames(d.Steps) {
		if err := dag.linkDependencies(dag.Nodes[name]); err != nil {
			return nil, err
		}
	}

	dag.findRootNodes()

	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// linkDependencies связывает узел с upstream шагами и producers входов.
func (d *DAG) linkDependencies(node *Node) error {
	upstream := make([]string, 0, len(node.Step.Spec.UpstreamSteps)+len(node.Step.Spec.Inputs))
	upstream = append(upstream, node.Step.Spec.UpstreamSteps...)

	inputNames := make([]string, 0, len(node.Step.Spec.Inputs))
	for name := range node.Step.Spec.Inputs {
		inputNames = append(inputNames, name)
	}
	sort.Strings(inputNames)
	for _, name := range inputNames {
		upstream = append(upstream, node.Step.Spec.Inputs[name].StepName)
	}

	for _, depName := range upstream {
		if depName == node.Name {
			return NewValidationError(node.Name, "upstream_steps", "step depends on itself", ErrSelfDependency)
		}
		depNode, exists := d.Nodes[depName]
		if !exists {
			return NewValidationError(node.Name, "upstream_steps",
				fmt.Sprintf("depends on unknown step: %s", depName), ErrMissingDependency)
		}
		d.addEdge(depNode, node)
	}

	return nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.Name == from.Name {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.Nodes {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
	sortNodes(d.RootNodes)
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int, len(d.Nodes))
	for name, node := range d.Nodes {
		inDegree[name] = node.InDegree
	}

	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		released := false
		for _, dependent := range node.Dependents {
			inDegree[dependent.Name]--
			if inDegree[dependent.Name] == 0 {
				queue = append(queue, dependent)
				released = true
			}
		}
		if released {
			sortNodes(queue)
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// GetReadyNodes возвращает узлы, готовые к запуску, по имени.
//
// Узел готов, если все его зависимости в completed,
// а сам он не в completed и не в running.
func (d *DAG) GetReadyNodes(completed, running map[string]bool) []*Node {
	ready := make([]*Node, 0)

	for _, node := range d.Nodes {
		if completed[node.Name] || running[node.Name] {
			continue
		}

		allDepsCompleted := true
		for _, dep := range node.DependsOn {
			if !completed[dep.Name] {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, node)
		}
	}

	sortNodes(ready)
	return ready
}

// GetNode возвращает узел по имени шага.
func (d *DAG) GetNode(name string) *Node {
	return d.Nodes[name]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// IsComplete проверяет, все ли узлы завершены.
func (d *DAG) IsComplete(completed map[string]bool) bool {
	for name := range d.Nodes {
		if !completed[name] {
			return false
		}
	}
	return true
}

// StepNames возвращает имена шагов в топологическом порядке.
func (d *DAG) StepNames() []string {
	names := make([]string, len(d.Order))
	for i, node := range d.Order {
		names[i] = node.Name
	}
	return names
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}

func sortedNames(steps map[string]domain.Step) []string {
	names := make([]string, 0, len(steps))
	for name := range steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
