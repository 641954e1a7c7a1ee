package rate

func failKey(ip, path string) string {
	return "fail:api:" + ip + ":" + path
}

func blockKey(ip, path string) string {
	return "block:api:" + ip + ":" + path
}
