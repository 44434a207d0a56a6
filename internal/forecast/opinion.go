package forecast

import (
	"strings"

	"github.com/shopspring/decimal"
)

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func autoregressiveOpinion(stats map[string]float64) string {
	var b strings.Builder
	b.WriteString("ARIMA model quality: ")

	mape := stats["MAPE"]
	switch {
	case mape < 5:
		b.WriteString("excellent fit, MAPE below 5%.")
	case mape < 10:
		b.WriteString("good fit, MAPE below 10%. Reliable for forecasting.")
	case mape < 15:
		b.WriteString("satisfactory fit, MAPE below 15%. Use with caution.")
	default:
		b.WriteString("poor fit, MAPE above 15%. Limited predictive value.")
	}
	b.WriteString(" MAPE " + fixed(mape, 2) + "%, RMSE " + fixed(stats["RMSE"], 4))
	b.WriteString(", AIC " + fixed(stats["AIC"], 2) + ", BIC " + fixed(stats["BIC"], 2) + ".")
	return b.String()
}

func movingAverageOpinion(stats map[string]float64) string {
	mape := stats["MAPE"]
	msg := "Moving average ensemble. MAPE " + fixed(mape, 2) + "%. "
	if mape < 10 {
		return msg + "Good for stable trends."
	}
	return msg + "Trend changes reduce accuracy."
}

func simulationOpinion(stats map[string]float64) string {
	volatility := stats["Volatility"]
	msg := "Monte Carlo simulation (" + fixed(stats["Simulations"], 0) + " paths). Volatility " +
		fixed(volatility*100, 4) + "%, RMSE " + fixed(stats["RMSE"], 4) + ". "
	if volatility < 0.02 {
		return msg + "Low risk."
	}
	return msg + "High volatility, wide confidence intervals."
}
