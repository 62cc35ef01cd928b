package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key for a student's login session.
func (r *CacheKeyStruct) StudentLoginKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// SessionSnapshotKey returns the cache key for a session's progress snapshot.
func (r *CacheKeyStruct) SessionSnapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:snapshot", sessionID)
}

// SessionStartKey returns the cache key for a session's wall-clock start time.
func (r *CacheKeyStruct) SessionStartKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:session_start", studentID, examID)
}

// ExamPayloadKey returns the cache key for an exam's student-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamDurationKey returns the cache key for an exam's duration in minutes.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

var CacheKey = NewCacheKeyStruct()
