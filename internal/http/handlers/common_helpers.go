package handlers

import (
	"dinetab-order-services/internal/utils"

	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func numericFloat(v pgtype.Numeric) float64 {
	return utils.NumericToFloat64(v)
}

func textPtr(v pgtype.Text) *string {
	if v.Valid {
		return &v.String
	}
	return nil
}
