package usecase

import (
	"log"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"
)

// SnoozeEmail hides the email until wakeAt, recording where it came from so
// the sweep can put it back. An email snoozed from the snoozed column itself
// (or with no known placement) restores to inbox.
func (s *Service) SnoozeEmail(userID, emailID string, wakeAt time.Time) error {
	current, err := s.mappingRepo.GetEmailColumn(userID, emailID)
	if err != nil {
		log.Printf("[Snooze] Failed to read current column for %s: %v", emailID, err)
		current = ""
	}
	if current == "" {
		current = s.resolveColumn(userID, emailID, nil)
	}
	if current == "" || current == emaildomain.ColumnSnoozed {
		current = emaildomain.ColumnInbox
	}

	if err := s.mappingRepo.SnoozeEmail(userID, emailID, current, wakeAt); err != nil {
		return err
	}

	s.status.setColumn(userID, emailID, emaildomain.ColumnSnoozed)
	if cached, ok := s.status.cached(userID, emailID); ok {
		cached.Column = emaildomain.ColumnSnoozed
		cached.SnoozedUntil = &wakeAt
		s.status.remember(userID, cached)
	}
	return nil
}

// UnsnoozeEmail restores the email to the column it was snoozed from and
// returns that column so the UI can navigate to it.
func (s *Service) UnsnoozeEmail(userID, emailID string) (string, error) {
	target := emaildomain.ColumnInbox
	mapping, err := s.mappingRepo.GetMapping(userID, emailID)
	if err != nil {
		log.Printf("[Snooze] Failed to read mapping for %s, restoring to inbox: %v", emailID, err)
	} else if mapping != nil && mapping.PreviousColumnID != "" {
		target = mapping.PreviousColumnID
	}

	// SetEmailColumn clears the snooze fields alongside the column change.
	if err := s.mappingRepo.SetEmailColumn(userID, emailID, target); err != nil {
		return "", err
	}
	s.status.setColumn(userID, emailID, target)
	return target, nil
}

// startSnoozeSweeper runs the periodic wake check. A single consumer on the
// ticker guarantees sweeps never overlap: a slow sweep just delays the next
// tick's handling.
func (s *Service) startSnoozeSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.sweepStop:
				return
			case <-ticker.C:
				s.sweepSnoozed()
			}
		}
	}()
}

// sweepSnoozed restores every snoozed email whose wake time has passed.
// Per-row failures are logged and skipped so one bad row never stalls the
// rest of the sweep. Rows with no wake time are legacy state and are left
// snoozed rather than guessed at.
func (s *Service) sweepSnoozed() {
	rows, err := s.mappingRepo.GetAllSnoozed()
	if err != nil {
		log.Printf("[Snooze] Sweep failed to list snoozed rows: %v", err)
		return
	}

	now := time.Now()
	for _, row := range rows {
		if row.SnoozedUntil == nil || row.SnoozedUntil.After(now) {
			continue
		}

		target := row.PreviousColumnID
		if target == "" {
			target = emaildomain.ColumnInbox
		}

		if err := s.mappingRepo.SetEmailColumn(row.UserID, row.EmailID, target); err != nil {
			log.Printf("[Snooze] Failed to wake email %s for user %s: %v", row.EmailID, row.UserID, err)
			continue
		}
		s.status.setColumn(row.UserID, row.EmailID, target)

		if s.notifier != nil {
			s.notifier.SendToUser(row.UserID, "email_update", map[string]interface{}{
				"email_id": row.EmailID,
				"action":   "unsnooze",
				"column":   target,
			})
		}
		log.Printf("[Snooze] Woke email %s for user %s into column %s", row.EmailID, row.UserID, target)
	}
}
