// Package publish содержит операции записи статусов в metadata store.
//
// FailedStepRun и FailedPipelineRun вызываются launcher при любой ошибке,
// UpdatePipelineRunStatus — после каждого успешного запуска шага.
package publish
