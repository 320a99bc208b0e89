// Package config читает настройки процессов Conduit из переменных окружения
// и собирает из них store.Client и artifact store.
package config
