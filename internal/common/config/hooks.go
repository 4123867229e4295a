package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/talos-perf/talos/internal/talos/filter"
)

// CustomHooks are the decode hooks to pass to viper.Unmarshal.
// viper.DecodeHook replaces viper's default hooks, so those are composed in here too.
var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		FilterPipelineHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)),
}

// FilterPipelineHookFunc decodes a list of filter specs (e.g., ["ignore_first:5", "median"]),
// or a whitespace-separated string of them, into a filter.Pipeline.
func FilterPipelineHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != reflect.TypeOf(filter.Pipeline{}) {
			return data, nil
		}
		switch f.Kind() {
		case reflect.String:
			return filter.Parse(strings.Fields(data.(string))...)
		case reflect.Slice:
			v := reflect.ValueOf(data)
			specs := make([]string, v.Len())
			for i := range specs {
				specs[i] = fmt.Sprint(v.Index(i).Interface())
			}
			return filter.Parse(specs...)
		default:
			return data, nil
		}
	}
}
