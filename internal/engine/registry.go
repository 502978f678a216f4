package engine

import (
	"fmt"
	"log/slog"

	"macromon/internal/calc"
	"macromon/internal/config"
)

// BuildCalculators assembles the standard calculator set from engine
// configuration. The returned order is stable but carries no execution
// meaning; the engine runs calculators in parallel.
func BuildCalculators(cfg config.Engine, logger *slog.Logger) []calc.Calculator {
	expandedComponents := append([]string{cfg.BaseSeries}, cfg.LiabilitySeries...)

	return []calc.Calculator{
		calc.NewDeltaCalculator("base", cfg.BaseSeries, cfg.DeltaWindows, logger),
		calc.NewDeltaCalculator("reserves", cfg.ReservesSeries, cfg.DeltaWindows, logger),

		calc.NewAggregateCalculator("base_expanded", expandedComponents, calc.StrategyStrict, logger),
		calc.NewAggregateCalculator("remunerated_liabilities", cfg.LiabilitySeries, calc.StrategyPartialSum, logger),

		calc.NewRatioCalculator("base_to_expanded", cfg.BaseSeries, expandedComponents, logger),
		calc.NewBackingRatioCalculator("reserves_to_base", cfg.ReservesSeries, cfg.BaseSeries, cfg.FXSeries, logger),
		calc.NewCoverageRatioCalculator("liabilities_to_reserves", cfg.LiabilitySeries, cfg.ReservesSeries, cfg.FXSeries, logger),

		calc.NewVolatilityCalculator("fx", cfg.FXSeries, cfg.VolatilityWindows, logger),
		calc.NewTrendCalculator("fx.trend", cfg.FXSeries, logger),
		calc.NewPressureCalculator(fmt.Sprintf("fx.local_pressure_%dd", cfg.PressureWindow), cfg.FXSeries, cfg.PressureBasket, cfg.PressureWindow, logger),

		calc.NewHealthCalculator(cfg.AllSeries(), logger),
	}
}
