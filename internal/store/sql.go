package store

const createReviewsSQL = `
CREATE TABLE IF NOT EXISTS reviews (
  source     VARCHAR(512) NOT NULL,
  position   INT          NOT NULL,
  rating     TINYINT      NULL,
  review     MEDIUMTEXT   NULL,
  stored_at  TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (source(191), position)
) DEFAULT CHARSET = utf8mb4
`

const deleteReviewsSQL = `DELETE FROM reviews WHERE source = ?`

const insertReviewSQL = `INSERT INTO reviews (source, position, rating, review) VALUES (?, ?, ?, ?)`

const selectReviewsSQL = `SELECT position, rating, review FROM reviews WHERE source = ? ORDER BY position`

const listSourcesSQL = `SELECT source, COUNT(*) FROM reviews GROUP BY source ORDER BY source`
