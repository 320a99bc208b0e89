// Package artifacts предоставляет хранилища артефактов.
//
// Реализации:
//   - LocalStore — директории на локальной файловой системе (атомарный Mkdir)
//   - MinIOStore — префиксы объектов в S3-совместимом хранилище
package artifacts
