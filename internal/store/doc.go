// Package store — клиентская сторона metadata store.
//
// Координатор работает только через интерфейс Store:
//   - client.go — HTTP+JSON клиент Conduit API (bearer токен, без повторов)
//   - local.go  — Store поверх репозиториев в том же процессе
//
// Ошибки API переводятся в sentinel ошибки:
// 400 → ErrInvalidRequest, 401 → ErrUnauthorized, 403 → ErrForbidden,
// 404 → ErrNotFound, 409 → ErrAlreadyExists, 422 → ErrInvalidState.
package store
