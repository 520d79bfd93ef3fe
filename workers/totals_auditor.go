package workers

import (
	"context"
	"log"
	"time"

	"workshop-scoring-system/models"

	"gorm.io/gorm"
)

// TotalsAuditor re-derives every team's total from its four station columns
// and repairs any row that drifted. The normal write paths recompute totals
// in-statement, so a hit here means something wrote out-of-band (manual SQL,
// a partial restore) — worth a log line, not just a silent fix.
type TotalsAuditor struct {
	DB *gorm.DB
}

func NewTotalsAuditor(db *gorm.DB) *TotalsAuditor {
	return &TotalsAuditor{DB: db}
}

// AuditOnce repairs drifted totals and returns how many rows it touched.
// The repair is a guarded UPDATE so a concurrent legitimate write wins.
func (a *TotalsAuditor) AuditOnce(ctx context.Context) (int, error) {
	var drifted []models.Team
	err := a.DB.WithContext(ctx).
		Where("total_score <> " + models.TotalScoreExpr).
		Find(&drifted).Error
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, t := range drifted {
		res := a.DB.WithContext(ctx).Model(&models.Team{}).
			Where("id = ? AND total_score = ?", t.ID, t.TotalScore).
			UpdateColumn("total_score", gorm.Expr(models.TotalScoreExpr))
		if res.Error != nil {
			return fixed, res.Error
		}
		if res.RowsAffected > 0 {
			log.Printf("⚠️ [TotalsAuditor] repaired team=%s stored=%d derived=%d",
				t.TeamCode, t.TotalScore, t.SumStationScores())
			fixed++
		}
	}
	return fixed, nil
}

// PollTotals runs the auditor until the context ends.
func PollTotals(ctx context.Context, auditor *TotalsAuditor, pollInterval time.Duration) {
	log.Println("Starting totals auditor...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Totals auditor stopped")
			return
		case <-ticker.C:
			if _, err := auditor.AuditOnce(ctx); err != nil {
				log.Printf("[TotalsAuditor] audit failed: %v", err)
			}
		}
	}
}
