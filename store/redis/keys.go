package redis

// Redis key naming conventions for chrono data.
// All keys are prefixed with "chrono:" to avoid collisions.

const keyPrefix = "chrono:"

// ── Schedule keys ──

// scheduleKey returns the key for a schedule entity: chrono:schedule:{id}
func scheduleKey(id string) string { return keyPrefix + "schedule:" + id }

// scheduleIDsKey is the Sorted Set tracking all schedule IDs, scored by
// creation time for ordered enumeration.
const scheduleIDsKey = keyPrefix + "schedule_ids"

// ── Execution keys ──

// executionKey returns the key for an execution record: chrono:execution:{id}
func executionKey(id string) string { return keyPrefix + "execution:" + id }

// historyKey returns the Sorted Set key holding a schedule's execution
// IDs scored by start time: chrono:history:{scheduleID}
func historyKey(scheduleID string) string { return keyPrefix + "history:" + scheduleID }
