package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/edwinlov3tt/approval-dashboard/internal/domain"
)

const campaignCols = `id,advertiser_id,name,description,status,start_date,end_date,created_at,updated_at`

func scanCampaign(scan func(dest ...any) error) (domain.Campaign, error) {
	var c domain.Campaign
	var desc, start, end sql.NullString
	err := scan(&c.ID, &c.AdvertiserID, &c.Name, &desc, &c.Status, &start, &end, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Description = desc.String
	if start.Valid {
		c.StartDate = &start.String
	}
	if end.Valid {
		c.EndDate = &end.String
	}
	return c, nil
}

func (r Repo) InsertCampaign(ctx context.Context, c domain.Campaign) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO campaigns(`+campaignCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.AdvertiserID, c.Name, nullable(c.Description), c.Status, nullableStringPtr(c.StartDate), nullableStringPtr(c.EndDate), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id=?`, id)
	return scanCampaign(row.Scan)
}

func (r Repo) ListCampaigns(ctx context.Context, advertiserID string) ([]domain.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE advertiser_id=? ORDER BY created_at DESC, id DESC`, advertiserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// CampaignUpdate carries partial campaign edits; nil fields are untouched.
type CampaignUpdate struct {
	Name        *string
	Description *string
	Status      *string
	StartDate   *string
	EndDate     *string
}

func (r Repo) UpdateCampaign(ctx context.Context, id, updatedAt string, u CampaignUpdate) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v *string) {
		if v != nil {
			fields = append(fields, col+"=?")
			args = append(args, nullable(*v))
		}
	}
	set("name", u.Name)
	set("description", u.Description)
	set("status", u.Status)
	set("start_date", u.StartDate)
	set("end_date", u.EndDate)
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, `UPDATE campaigns SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCampaign(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- ads ---

const adCols = `id,advertiser_id,short_id,content_json,created_at,updated_at`

func scanAd(scan func(dest ...any) error) (domain.Ad, error) {
	var a domain.Ad
	err := scan(&a.ID, &a.AdvertiserID, &a.ShortID, &a.ContentJSON, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertAd(ctx context.Context, a domain.Ad) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO ads(`+adCols+`) VALUES (?,?,?,?,?,?)`,
		a.ID, a.AdvertiserID, a.ShortID, a.ContentJSON, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) GetAd(ctx context.Context, id string) (domain.Ad, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+adCols+` FROM ads WHERE id=?`, id)
	return scanAd(row.Scan)
}

// GetAdByShortID resolves the short creative code used in share links.
func (r Repo) GetAdByShortID(ctx context.Context, advertiserID, shortID string) (domain.Ad, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+adCols+` FROM ads WHERE advertiser_id=? AND short_id=?`, advertiserID, shortID)
	return scanAd(row.Scan)
}

func (r Repo) ListAds(ctx context.Context, advertiserID string) ([]domain.Ad, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+adCols+` FROM ads WHERE advertiser_id=? ORDER BY created_at DESC, id DESC`, advertiserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAds(rows)
}

func (r Repo) UpdateAdContent(ctx context.Context, id, contentJSON, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE ads SET content_json=?, updated_at=? WHERE id=?`, contentJSON, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- campaign/ad links ---

func (r Repo) AttachAd(ctx context.Context, campaignID, adID string, displayOrder int) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO campaign_ads(campaign_id,ad_id,display_order) VALUES (?,?,?)
ON CONFLICT(campaign_id,ad_id) DO UPDATE SET display_order=excluded.display_order`, campaignID, adID, displayOrder)
	return err
}

func (r Repo) DetachAd(ctx context.Context, campaignID, adID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_ads WHERE campaign_id=? AND ad_id=?`, campaignID, adID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCampaignAds returns a campaign's creatives in display order.
func (r Repo) ListCampaignAds(ctx context.Context, campaignID string) ([]domain.Ad, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT a.id,a.advertiser_id,a.short_id,a.content_json,a.created_at,a.updated_at
FROM campaign_ads ca
JOIN ads a ON a.id=ca.ad_id
WHERE ca.campaign_id=?
ORDER BY ca.display_order ASC, a.created_at ASC`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAds(rows)
}

func collectAds(rows *sql.Rows) ([]domain.Ad, error) {
	var res []domain.Ad
	for rows.Next() {
		a, err := scanAd(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CountAdvertiserInventory returns campaign and ad totals for the dashboard.
func (r Repo) CountAdvertiserInventory(ctx context.Context, advertiserID string) (campaigns, ads int, err error) {
	if err = r.DB.QueryRowContext(ctx, `SELECT count(*) FROM campaigns WHERE advertiser_id=?`, advertiserID).Scan(&campaigns); err != nil {
		return 0, 0, err
	}
	if err = r.DB.QueryRowContext(ctx, `SELECT count(*) FROM ads WHERE advertiser_id=?`, advertiserID).Scan(&ads); err != nil {
		return 0, 0, err
	}
	return campaigns, ads, nil
}

// CountCampaignAds powers the campaign list's ad-count column.
func (r Repo) CountCampaignAds(ctx context.Context, advertiserID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT ca.campaign_id, count(*)
FROM campaign_ads ca
JOIN campaigns c ON c.id=ca.campaign_id
WHERE c.advertiser_id=?
GROUP BY ca.campaign_id`, advertiserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		res[id] = n
	}
	return res, rows.Err()
}
