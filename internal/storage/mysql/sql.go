package mysql

// published_at goes through COALESCE so an unknown publication time falls
// back to the ingestion time.
const insertReviewSQL = `
INSERT INTO reviews
  (external_id, place_id, author, author_url, photo_url, rating, ` + "`text`" + `, source, hidden, published_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
`

// Overwrite set per ingestion contract: rating, body, author fields, source
// and place assignment. hidden, photo_object and published_at are not
// touched by a re-sync.
const updateReviewSQL = `
UPDATE reviews SET
  place_id   = ?,
  author     = ?,
  author_url = ?,
  photo_url  = ?,
  rating     = ?,
  ` + "`text`" + `     = ?,
  source     = ?
WHERE external_id = ?
`

const selectReviewCols = "id, external_id, place_id, author, author_url, photo_url, photo_object, rating, `text`, source, hidden, published_at"

const findReviewSQL = `
SELECT ` + selectReviewCols + `
FROM reviews
WHERE external_id = ?
`

const setHiddenSQL = `UPDATE reviews SET hidden = ? WHERE external_id = ?`

const setPhotoObjectSQL = `UPDATE reviews SET photo_object = ? WHERE external_id = ?`

const deleteReviewsByPlaceSQL = `DELETE FROM reviews WHERE place_id = ?`

// Location rows are written whole: Merge reads the current row, folds the
// incoming fields in with merge-if-present semantics, and writes the result
// back. updated_at refreshes on every merge regardless of what changed.
const upsertLocationSQL = `
INSERT INTO locations
  (place_id, data_id, name, address, phone, lat, lng, price_level, rating, review_count, maps_url, website, hours)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  data_id      = VALUES(data_id),
  name         = VALUES(name),
  address      = VALUES(address),
  phone        = VALUES(phone),
  lat          = VALUES(lat),
  lng          = VALUES(lng),
  price_level  = VALUES(price_level),
  rating       = VALUES(rating),
  review_count = VALUES(review_count),
  maps_url     = VALUES(maps_url),
  website      = VALUES(website),
  hours        = VALUES(hours),
  updated_at   = CURRENT_TIMESTAMP
`

const getLocationSQL = `
SELECT place_id, data_id, name, address, phone, lat, lng, price_level, rating, review_count, maps_url, website, hours, updated_at
FROM locations
WHERE place_id = ?
`

const listLocationsSQL = `
SELECT l.place_id, l.name, COUNT(r.id)
FROM locations l
LEFT JOIN reviews r ON r.place_id = l.place_id
GROUP BY l.place_id, l.name
ORDER BY COUNT(r.id) DESC, l.place_id
`

const deleteLocationSQL = `DELETE FROM locations WHERE place_id = ?`

const liveStatsSQL = `
SELECT COUNT(*), COALESCE(AVG(rating), 0)
FROM reviews
WHERE hidden = 0
`

const getStateSQL = `SELECT v FROM app_state WHERE k = ?`

const setStateSQL = `
INSERT INTO app_state (k, v) VALUES (?, ?)
ON DUPLICATE KEY UPDATE v = VALUES(v)
`
